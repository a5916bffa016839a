package reportexporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Local stores archives in a directory; the bucket is the directory path.
const Local Provider = "local"

type LocalExporter struct{}

func NewLocalExporter() *LocalExporter {
	return &LocalExporter{}
}

func (l *LocalExporter) Provider() Provider {
	return Local
}

func (l *LocalExporter) Upload(ctx context.Context, dir, bucket, name string, opts ...UploadOption) error {
	options := defaultUploadOptions()
	for _, opt := range opts {
		opt(options)
	}

	totalSize, err := checkSource(dir, options)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(bucket, 0755); err != nil {
		return fmt.Errorf("failed to create %q: %v", bucket, err)
	}

	target := filepath.Join(bucket, name+ArchiveExtension)
	log.WithFields(map[string]interface{}{
		"size":   totalSize.HumanReadable(),
		"source": dir,
		"target": target,
	}).Info("start compressing")

	tmp, err := os.CreateTemp(bucket, "."+name+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := writeArchive(ctx, dir, tmp, totalSize, options); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (l *LocalExporter) Delete(_ context.Context, bucket, name string, opts ...DeleteOption) error {
	options := defaultDeleteOptions()
	for _, opt := range opts {
		opt(options)
	}

	entries, err := os.ReadDir(bucket)
	if err != nil {
		return fmt.Errorf("failed to list objects: %v", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), name) {
			names = append(names, e.Name())
		}
	}
	return deleteAll(bucket, name, names, options, func(obj string) error {
		return os.Remove(filepath.Join(bucket, obj))
	})
}
