package reportexporter

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	DefaultSizeLimit      = "1GB"
	DefaultChunkSize      = "16MB"
	DefaultBufferSize     = "1MB"
	DefaultReportPeriod   = time.Second
	DefaultConcurrentJobs = 10
)

// UploadOptions configures the behavior of report uploads.
type UploadOptions struct {
	// ChunkSize is the size of each request of a resumable GCS upload
	ChunkSize datasize.ByteSize
	// SizeLimit is the largest uncompressed directory accepted
	SizeLimit    datasize.ByteSize
	BufferSize   datasize.ByteSize
	ReportPeriod time.Duration
}

func defaultUploadOptions() *UploadOptions {
	return &UploadOptions{
		ChunkSize:    datasize.MustParseString(DefaultChunkSize),
		SizeLimit:    datasize.MustParseString(DefaultSizeLimit),
		BufferSize:   datasize.MustParseString(DefaultBufferSize),
		ReportPeriod: DefaultReportPeriod,
	}
}

// UploadOption is a functional option for configuring uploads.
type UploadOption func(*UploadOptions)

// WithChunkSize sets the chunk size for uploads.
func WithChunkSize(size datasize.ByteSize) UploadOption {
	return func(o *UploadOptions) {
		o.ChunkSize = size
	}
}

// WithSizeLimit sets the maximum directory size that can be exported.
func WithSizeLimit(size datasize.ByteSize) UploadOption {
	return func(o *UploadOptions) {
		o.SizeLimit = size
	}
}

// WithBufferSize sets the copy buffer size.
func WithBufferSize(size datasize.ByteSize) UploadOption {
	return func(o *UploadOptions) {
		o.BufferSize = size
	}
}

// WithReportPeriod sets how often progress is reported.
func WithReportPeriod(period time.Duration) UploadOption {
	return func(o *UploadOptions) {
		o.ReportPeriod = period
	}
}

// DeleteOptions configures the behavior of deletions.
type DeleteOptions struct {
	ConcurrentJobs int
}

func defaultDeleteOptions() *DeleteOptions {
	return &DeleteOptions{
		ConcurrentJobs: DefaultConcurrentJobs,
	}
}

// DeleteOption is a functional option for configuring deletions.
type DeleteOption func(*DeleteOptions)

// WithConcurrentDeleteJobs sets the number of concurrent delete workers.
func WithConcurrentDeleteJobs(concurrentJobs int) DeleteOption {
	return func(o *DeleteOptions) {
		if concurrentJobs > 0 {
			o.ConcurrentJobs = concurrentJobs
		}
	}
}
