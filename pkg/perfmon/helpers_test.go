package perfmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

var epoch = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

func newFakeClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(epoch)
}

type recordedMetric struct {
	name MetricName
	data Data
}

type captureSink struct {
	mu      sync.Mutex
	records []recordedMetric
}

func (c *captureSink) RecordMetric(name MetricName, data Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, recordedMetric{name: name, data: data})
}

func (c *captureSink) all() []recordedMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recordedMetric, len(c.records))
	copy(out, c.records)
	return out
}

func (c *captureSink) values(name MetricName) []float64 {
	var out []float64
	for _, r := range c.all() {
		if r.name == name {
			v, _ := toFloat(r.data[valueKey])
			out = append(out, v)
		}
	}
	return out
}

type countingSender struct {
	mu     sync.Mutex
	count  atomic.Int32
	events []AnalyticsEvent
	err    error
}

func (s *countingSender) Send(_ context.Context, event AnalyticsEvent) error {
	s.count.Add(1)
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return s.err
}

func (s *countingSender) sent() []AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}

type panickingEnvironment struct{}

func (panickingEnvironment) URL() string                     { return "/ngos" }
func (panickingEnvironment) UserAgent() string               { panic("navigator missing") }
func (panickingEnvironment) Viewport() (Viewport, error)     { return Viewport{}, ErrUnavailable }
func (panickingEnvironment) Connection() (Connection, error) { panic("connection api missing") }

func newTestMonitor(source ObserverSource, opts ...Option) (*Monitor, *testingclock.FakeClock, *sessionstore.MemoryStore) {
	clk := newFakeClock()
	store := sessionstore.NewMemoryStore(0)
	opts = append([]Option{WithClock(clk), WithStore(store)}, opts...)
	return New(source, opts...), clk, store
}
