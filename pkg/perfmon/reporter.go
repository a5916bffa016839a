package perfmon

import (
	"context"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

// ThrottleKeyPrefix prefixes the session store key holding the last send time
// of a metric.
const ThrottleKeyPrefix = "lastAnalytics_"

// AnalyticsEvent is the body posted to the analytics endpoint.
type AnalyticsEvent struct {
	Metric    MetricName `json:"metric"`
	Data      Data       `json:"data"`
	Timestamp int64      `json:"timestamp"`
	Page      string     `json:"page"`
}

// Sender delivers analytics events upstream.
type Sender interface {
	Send(ctx context.Context, event AnalyticsEvent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, event AnalyticsEvent) error

func (f SenderFunc) Send(ctx context.Context, event AnalyticsEvent) error {
	return f(ctx, event)
}

// Reporter sends each metric upstream at most once per window. Sends are
// fire-and-forget and never retried.
type Reporter struct {
	sender  Sender
	store   sessionstore.Store
	clock   clock.PassiveClock
	window  time.Duration
	timeout time.Duration
	page    func() string
	onError ErrorHandler

	mu       sync.Mutex
	inflight sync.WaitGroup
}

func NewReporter(sender Sender, store sessionstore.Store, c clock.PassiveClock, window, timeout time.Duration, page func() string, onError ErrorHandler) *Reporter {
	if page == nil {
		page = func() string { return "" }
	}
	return &Reporter{
		sender:  sender,
		store:   store,
		clock:   c,
		window:  window,
		timeout: timeout,
		page:    page,
		onError: onError,
	}
}

// MaybeSend dispatches data for name unless the metric was sent less than one
// window ago. It reports whether a send was dispatched.
func (r *Reporter) MaybeSend(name MetricName, data Data) bool {
	now := r.clock.Now()
	key := ThrottleKeyPrefix + string(name)

	r.mu.Lock()
	if last, ok := r.lastSent(key); ok && now.Sub(last) < r.window {
		r.mu.Unlock()
		return false
	}
	r.store.Set(key, strconv.FormatInt(now.UnixMilli(), 10))
	r.mu.Unlock()

	event := AnalyticsEvent{
		Metric:    name,
		Data:      data,
		Timestamp: now.UnixMilli(),
		Page:      r.currentPage(),
	}

	r.inflight.Add(1)
	go r.deliver(event)
	return true
}

// Wait blocks until every dispatched send has finished.
func (r *Reporter) Wait() {
	r.inflight.Wait()
}

func (r *Reporter) lastSent(key string) (time.Time, bool) {
	raw, ok := r.store.Get(key)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (r *Reporter) currentPage() (page string) {
	defer func() {
		if rec := recover(); rec != nil {
			page = ""
		}
	}()
	return r.page()
}

func (r *Reporter) deliver(event AnalyticsEvent) {
	defer r.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(event.Metric, errors.Errorf("sender panicked: %v", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sender.Send(ctx, event); err != nil {
		r.fail(event.Metric, errors.WrapIf(err, "failed to send analytics"))
	}
}

func (r *Reporter) fail(metric MetricName, err error) {
	log.WithField("metric", metric).Warnf("analytics send dropped: %v", err)
	if r.onError != nil {
		r.onError(metric, err)
	}
}
