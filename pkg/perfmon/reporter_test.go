package perfmon

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

func TestReporter_ThrottlesPerMetric(t *testing.T) {
	clk := newFakeClock()
	store := sessionstore.NewMemoryStore(0)
	sender := &countingSender{}
	reporter := NewReporter(sender, store, clk, DefaultThrottleWindow, DefaultSendTimeout, func() string { return "/donate" }, nil)

	assert.True(t, reporter.MaybeSend(MetricLCP, Data{"value": 1}))
	clk.Step(10 * time.Second)
	assert.False(t, reporter.MaybeSend(MetricLCP, Data{"value": 2}))
	reporter.Wait()
	assert.Equal(t, int32(1), sender.count.Load())

	clk.Step(20 * time.Second)
	assert.True(t, reporter.MaybeSend(MetricLCP, Data{"value": 3}))
	reporter.Wait()
	assert.Equal(t, int32(2), sender.count.Load())

	events := sender.sent()
	require.Len(t, events, 2)
	assert.Equal(t, MetricLCP, events[0].Metric)
	assert.Equal(t, "/donate", events[0].Page)
	assert.Equal(t, epoch.UnixMilli(), events[0].Timestamp)
	assert.Equal(t, Data{"value": 3}, events[1].Data)
}

func TestReporter_MetricsThrottledIndependently(t *testing.T) {
	clk := newFakeClock()
	sender := &countingSender{}
	reporter := NewReporter(sender, sessionstore.NewMemoryStore(0), clk, DefaultThrottleWindow, DefaultSendTimeout, nil, nil)

	assert.True(t, reporter.MaybeSend(MetricLCP, nil))
	assert.True(t, reporter.MaybeSend(MetricFID, nil))
	assert.False(t, reporter.MaybeSend(MetricLCP, nil))
	reporter.Wait()

	assert.Equal(t, int32(2), sender.count.Load())
}

func TestReporter_PersistsThrottleState(t *testing.T) {
	clk := newFakeClock()
	store := sessionstore.NewMemoryStore(0)
	sender := &countingSender{}

	first := NewReporter(sender, store, clk, DefaultThrottleWindow, DefaultSendTimeout, nil, nil)
	first.MaybeSend(MetricCLS, nil)
	first.Wait()

	raw, ok := store.Get("lastAnalytics_CLS")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(epoch.UnixMilli(), 10), raw)

	// a reload within the same session shares the store
	second := NewReporter(sender, store, clk, DefaultThrottleWindow, DefaultSendTimeout, nil, nil)
	assert.False(t, second.MaybeSend(MetricCLS, nil))

	store.Clear()
	assert.True(t, second.MaybeSend(MetricCLS, nil))
	second.Wait()
	assert.Equal(t, int32(2), sender.count.Load())
}

func TestReporter_ConcurrentSendsWithinWindow(t *testing.T) {
	sender := &countingSender{}
	reporter := NewReporter(sender, sessionstore.NewMemoryStore(0), newFakeClock(), DefaultThrottleWindow, DefaultSendTimeout, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter.MaybeSend(MetricResource, nil)
		}()
	}
	wg.Wait()
	reporter.Wait()

	assert.Equal(t, int32(1), sender.count.Load())
}

func TestReporter_FailuresAreReported(t *testing.T) {
	g := NewWithT(t)
	sendErr := errors.New("connection refused")

	var mu sync.Mutex
	var failed []MetricName
	onError := func(metric MetricName, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.ErrorIs(t, err, sendErr)
		failed = append(failed, metric)
	}

	sender := &countingSender{err: sendErr}
	reporter := NewReporter(sender, sessionstore.NewMemoryStore(0), newFakeClock(), DefaultThrottleWindow, DefaultSendTimeout, nil, onError)
	reporter.MaybeSend(MetricError, Data{"message": "boom"})

	g.Eventually(func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(failed)
	}).Should(Equal(1))
}

func TestReporter_SenderPanicIsContained(t *testing.T) {
	errs := make(chan error, 1)
	sender := SenderFunc(func(context.Context, AnalyticsEvent) error {
		panic("transport exploded")
	})
	reporter := NewReporter(sender, sessionstore.NewMemoryStore(0), newFakeClock(), DefaultThrottleWindow, DefaultSendTimeout, nil,
		func(_ MetricName, err error) { errs <- err })

	assert.NotPanics(t, func() {
		reporter.MaybeSend(MetricFCP, nil)
		reporter.Wait()
	})
	assert.Contains(t, (<-errs).Error(), "transport exploded")
}

func TestReporter_SendIsNotAwaited(t *testing.T) {
	release := make(chan struct{})
	sender := SenderFunc(func(ctx context.Context, _ AnalyticsEvent) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	reporter := NewReporter(sender, sessionstore.NewMemoryStore(0), newFakeClock(), DefaultThrottleWindow, DefaultSendTimeout, nil, nil)

	done := make(chan struct{})
	go func() {
		reporter.MaybeSend(MetricTTFB, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("MaybeSend blocked on the sender")
	}
	close(release)
	reporter.Wait()
}
