// Package reportexporter archives a directory of performance reports as a
// tar.gz object in cloud storage or on the local filesystem.
package reportexporter

import (
	"context"
	"fmt"
)

type Provider string

const ArchiveExtension = ".tar.gz"

type Exporter interface {
	Provider() Provider
	// Upload archives dir into <bucket>/<name>.tar.gz
	Upload(ctx context.Context, dir, bucket, name string, opts ...UploadOption) error
	// Delete removes every object of bucket whose name starts with name
	Delete(ctx context.Context, bucket, name string, opts ...DeleteOption) error
}

func FromProvider(ctx context.Context, p Provider) (Exporter, error) {
	switch p {
	case GCS:
		return NewGcsExporter(ctx)
	case Local:
		return NewLocalExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", p)
	}
}
