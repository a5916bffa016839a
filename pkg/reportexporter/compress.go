package reportexporter

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
)

func compressTarGz(dir string, out io.Writer) error {
	gz, err := pgzip.NewWriterLevel(out, pgzip.BestSpeed)
	if err != nil {
		return fmt.Errorf("pgzip writer failed: %v", err)
	}
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, relPath)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write tar header: %v", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %v", err)
	}
	return gz.Close()
}
