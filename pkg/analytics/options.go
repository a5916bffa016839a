package analytics

import (
	"io"

	"github.com/c2h5oh/datasize"
	"k8s.io/utils/clock"
)

const (
	DefaultHistorySize = 100
	DefaultMaxBodySize = 64 * datasize.KB
)

func defaultOptions() *Options {
	return &Options{
		HistorySize: DefaultHistorySize,
		MaxBodySize: DefaultMaxBodySize,
		Clock:       clock.RealClock{},
	}
}

type Options struct {
	// HistorySize is the number of reports kept per metric
	HistorySize int
	MaxBodySize datasize.ByteSize
	// Output receives every accepted report as one JSON line when set
	Output io.Writer
	Clock  clock.PassiveClock
}

type Option func(*Options)

func WithHistorySize(n int) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.HistorySize = n
		}
	}
}

func WithMaxBodySize(size datasize.ByteSize) Option {
	return func(opts *Options) {
		opts.MaxBodySize = size
	}
}

func WithOutput(w io.Writer) Option {
	return func(opts *Options) {
		opts.Output = w
	}
}

func WithClock(c clock.PassiveClock) Option {
	return func(opts *Options) {
		opts.Clock = c
	}
}
