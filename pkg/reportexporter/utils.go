package reportexporter

import (
	"fmt"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
)

// GetDirSize calculates the total size of a directory and its contents.
func GetDirSize(path string) (datasize.ByteSize, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			// A report might be rotated away while walking. Skip it.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to calculate directory size: %v", err)
	}
	return datasize.ByteSize(size), nil
}

// checkSource validates dir and returns its size.
func checkSource(dir string, opts *UploadOptions) (datasize.ByteSize, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot stat directory %q: %v", dir, err)
	}
	if !fi.IsDir() {
		return 0, fmt.Errorf("%q is not a directory", dir)
	}

	totalSize, err := GetDirSize(dir)
	if err != nil {
		return 0, err
	}
	if opts.SizeLimit > 0 && totalSize > opts.SizeLimit {
		return 0, fmt.Errorf("%q is %s, over the %s limit", dir, totalSize.HumanReadable(), opts.SizeLimit.HumanReadable())
	}
	return totalSize, nil
}
