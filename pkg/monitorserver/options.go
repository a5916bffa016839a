package monitorserver

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8000
)

func defaultOptions() *Options {
	return &Options{
		Host:            DefaultHost,
		Port:            DefaultPort,
		MaxBodySize:     1 * datasize.MB,
		IngestRate:      50,
		IngestBurst:     100,
		ShutdownTimeout: 5 * time.Second,
	}
}

type Options struct {
	Host        string
	Port        int
	MaxBodySize datasize.ByteSize
	// IngestRate is the sustained number of entry batches accepted per second.
	// Zero or less disables the limit.
	IngestRate  float64
	IngestBurst int
	// ProcessInterval enables self process sampling when greater than zero
	ProcessInterval time.Duration
	ShutdownTimeout time.Duration
}

type Option func(*Options)

func WithHost(s string) Option {
	return func(opts *Options) {
		opts.Host = s
	}
}

func WithPort(v int) Option {
	return func(opts *Options) {
		opts.Port = v
	}
}

func WithMaxBodySize(size datasize.ByteSize) Option {
	return func(opts *Options) {
		opts.MaxBodySize = size
	}
}

func WithIngestLimit(perSecond float64, burst int) Option {
	return func(opts *Options) {
		opts.IngestRate = perSecond
		opts.IngestBurst = burst
	}
}

func WithProcessInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.ProcessInterval = d
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ShutdownTimeout = d
	}
}
