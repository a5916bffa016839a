// Package perfmon records client performance telemetry: bounded per-metric
// sample buffers fed by native performance entries and explicit tracking
// calls, throttled upstream reporting, and on-demand summaries checked against
// fixed budgets.
//
// A Monitor is built once by the application and handed to its consumers.
package perfmon

import (
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

// Monitor wires a Recorder, a Registry and an optional Reporter together and
// exposes the tracking API used by the application.
type Monitor struct {
	cfg      *Options
	recorder *Recorder
	registry *Registry
	reporter *Reporter
	enabled  atomic.Bool
}

// New creates an enabled Monitor observing source. A nil source leaves only
// explicit tracking calls as input.
func New(source ObserverSource, opts ...Option) *Monitor {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Store == nil {
		options.Store = sessionstore.NewMemoryStore(sessionstore.DefaultIdleTimeout)
	}
	if options.Environment == nil {
		options.Environment = NewHostEnvironment("", "")
	}

	m := &Monitor{cfg: options}
	if options.Sender != nil {
		m.reporter = NewReporter(
			options.Sender,
			options.Store,
			options.Clock,
			options.ThrottleWindow,
			options.SendTimeout,
			options.Environment.URL,
			options.OnError,
		)
	}
	m.recorder = NewRecorder(options.BufferSize, options.Clock, options.Environment, options.Store, m.reporter)
	m.registry = NewRegistry(source, m)

	m.enabled.Store(true)
	n := m.registry.Initialize()
	log.WithField("observers", n).Debug("performance monitor initialized")
	return m
}

// RecordMetric records a sample unless the monitor is disabled.
func (m *Monitor) RecordMetric(name MetricName, data Data) {
	if !m.enabled.Load() {
		return
	}
	m.recorder.RecordMetric(name, data)
}

// TrackUserAction records a UserAction sample.
func (m *Monitor) TrackUserAction(action string, details Data) {
	data := cloneData(details)
	data["action"] = action
	m.RecordMetric(MetricUserAction, data)
}

// TrackError records an Error sample with the message and stack of err.
func (m *Monitor) TrackError(err error, context Data) {
	m.RecordMetric(MetricError, errorData(err, context))
}

// TrackCustomMetric records a CustomMetric sample.
func (m *Monitor) TrackCustomMetric(name string, value float64, details Data) {
	data := cloneData(details)
	data["name"] = name
	data[valueKey] = value
	m.RecordMetric(MetricCustomMetric, data)
}

// Guard runs fn, recording a returned error or a recovered panic as an Error
// sample. A panic is returned as an error instead of propagating.
func (m *Monitor) Guard(context Data, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("recovered panic: %v", rec)
			m.TrackError(err, context)
		}
	}()

	if err = fn(); err != nil {
		m.TrackError(err, context)
	}
	return err
}

// GetMetrics returns a copy of the buffer of name.
func (m *Monitor) GetMetrics(name MetricName) []Sample {
	return m.recorder.GetMetrics(name)
}

// AllMetrics returns a copy of every buffer.
func (m *Monitor) AllMetrics() map[MetricName][]Sample {
	return m.recorder.AllMetrics()
}

func (m *Monitor) GetPerformanceSummary() Summary {
	return Summarize(m.recorder.AllMetrics())
}

func (m *Monitor) CheckPerformanceBudget() BudgetReport {
	return CheckBudget(m.recorder.AllMetrics(), m.cfg.Budgets)
}

// Budgets returns a copy of the configured budgets.
func (m *Monitor) Budgets() Budgets {
	b := make(Budgets, len(m.cfg.Budgets))
	for k, v := range m.cfg.Budgets {
		b[k] = v
	}
	return b
}

// PerformanceReport is the document produced by GenerateReport.
type PerformanceReport struct {
	Timestamp int64                   `json:"timestamp"`
	URL       string                  `json:"url"`
	UserAgent string                  `json:"userAgent"`
	SessionID string                  `json:"sessionId"`
	Summary   Summary                 `json:"summary"`
	Budget    BudgetReport            `json:"budget"`
	Metrics   map[MetricName][]Sample `json:"metrics"`
}

// Report builds a PerformanceReport from the current buffers.
func (m *Monitor) Report() PerformanceReport {
	buffers := m.recorder.AllMetrics()
	report := PerformanceReport{
		Timestamp: m.cfg.Clock.Now().UnixMilli(),
		SessionID: sessionstore.SessionID(m.cfg.Store),
		Summary:   Summarize(buffers),
		Budget:    CheckBudget(buffers, m.cfg.Budgets),
		Metrics:   buffers,
	}
	report.URL, _ = gather("url", func() (string, error) { return m.cfg.Environment.URL(), nil })
	report.UserAgent, _ = gather("user-agent", func() (string, error) { return m.cfg.Environment.UserAgent(), nil })
	return report
}

// GenerateReport serializes Report as indented JSON.
func (m *Monitor) GenerateReport() ([]byte, error) {
	b, err := json.MarshalIndent(m.Report(), "", "  ")
	if err != nil {
		return nil, errors.WrapIf(err, "failed to encode performance report")
	}
	return b, nil
}

// Enable resumes recording and registers the observers again.
func (m *Monitor) Enable() {
	m.enabled.Store(true)
	m.registry.Initialize()
}

// Disable stops recording and disconnects every observer.
func (m *Monitor) Disable() {
	m.enabled.Store(false)
	m.registry.Disable()
}

func (m *Monitor) Enabled() bool {
	return m.enabled.Load()
}

// Reset clears every buffer.
func (m *Monitor) Reset() {
	m.recorder.Reset()
}

// RouteChanged restarts the cumulative layout shift sum after a client side
// view change.
func (m *Monitor) RouteChanged() {
	m.registry.ResetLayoutShift()
}

// Observers returns the number of registered native observers.
func (m *Monitor) Observers() int {
	return m.registry.Observers()
}

// Flush waits for in-flight analytics sends.
func (m *Monitor) Flush() {
	if m.reporter != nil {
		m.reporter.Wait()
	}
}

// Clock returns the clock samples are stamped with.
func (m *Monitor) Clock() clock.PassiveClock {
	return m.cfg.Clock
}

// Environment returns the environment samples are stamped with.
func (m *Monitor) Environment() Environment {
	return m.cfg.Environment
}

// SessionID returns the current session identifier.
func (m *Monitor) SessionID() string {
	return sessionstore.SessionID(m.cfg.Store)
}

func elapsedMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
