package perfmon

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

const (
	DefaultBufferSize     = 100
	DefaultThrottleWindow = 30 * time.Second
	DefaultSendTimeout    = 10 * time.Second
)

// ErrorHandler receives failures of best-effort operations such as remote
// sends. It must not block.
type ErrorHandler func(metric MetricName, err error)

func defaultOptions() *Options {
	return &Options{
		BufferSize:     DefaultBufferSize,
		ThrottleWindow: DefaultThrottleWindow,
		SendTimeout:    DefaultSendTimeout,
		Budgets:        DefaultBudgets(),
		Clock:          clock.RealClock{},
	}
}

type Options struct {
	BufferSize     int
	ThrottleWindow time.Duration
	SendTimeout    time.Duration
	Budgets        Budgets
	Clock          clock.PassiveClock
	Store          sessionstore.Store
	Environment    Environment
	Sender         Sender
	OnError        ErrorHandler
}

type Option func(*Options)

func WithBufferSize(n int) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.BufferSize = n
		}
	}
}

func WithThrottleWindow(d time.Duration) Option {
	return func(opts *Options) {
		opts.ThrottleWindow = d
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.SendTimeout = d
	}
}

// WithBudgets overrides individual budget thresholds. Metrics not present in
// budgets keep their default threshold.
func WithBudgets(budgets Budgets) Option {
	return func(opts *Options) {
		for name, threshold := range budgets {
			opts.Budgets[name] = threshold
		}
	}
}

func WithClock(c clock.PassiveClock) Option {
	return func(opts *Options) {
		opts.Clock = c
	}
}

func WithStore(store sessionstore.Store) Option {
	return func(opts *Options) {
		opts.Store = store
	}
}

func WithEnvironment(env Environment) Option {
	return func(opts *Options) {
		opts.Environment = env
	}
}

// WithSender enables remote reporting through sender.
func WithSender(sender Sender) Option {
	return func(opts *Options) {
		opts.Sender = sender
	}
}

func WithErrorHandler(fn ErrorHandler) Option {
	return func(opts *Options) {
		opts.OnError = fn
	}
}
