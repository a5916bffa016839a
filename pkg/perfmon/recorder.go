package perfmon

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

// Recorder keeps a bounded buffer of samples per metric name.
type Recorder struct {
	buffers map[MetricName][]Sample
	lock    sync.RWMutex

	// maxSamples is the maximum number of samples retained per metric
	maxSamples int

	clock    clock.PassiveClock
	env      Environment
	store    sessionstore.Store
	reporter *Reporter
}

// NewRecorder creates a Recorder. reporter may be nil to keep samples local.
func NewRecorder(maxSamples int, c clock.PassiveClock, env Environment, store sessionstore.Store, reporter *Reporter) *Recorder {
	return &Recorder{
		buffers:    make(map[MetricName][]Sample),
		maxSamples: maxSamples,
		clock:      c,
		env:        env,
		store:      store,
		reporter:   reporter,
	}
}

// RecordMetric stamps data with the current context, appends it to the buffer
// of name and hands it to the reporter.
func (r *Recorder) RecordMetric(name MetricName, data Data) {
	if name == "" {
		return
	}
	sample := r.newSample(name, data)

	r.lock.Lock()
	buf := append(r.buffers[name], sample)
	if len(buf) > r.maxSamples {
		buf = buf[len(buf)-r.maxSamples:]
	}
	r.buffers[name] = buf
	r.lock.Unlock()

	if r.reporter != nil {
		r.reporter.MaybeSend(name, cloneData(data))
	}
}

// GetMetrics returns a copy of the buffer of name.
func (r *Recorder) GetMetrics(name MetricName) []Sample {
	r.lock.RLock()
	defer r.lock.RUnlock()

	buf := r.buffers[name]
	result := make([]Sample, len(buf))
	copy(result, buf)
	return result
}

// AllMetrics returns a copy of every buffer.
func (r *Recorder) AllMetrics() map[MetricName][]Sample {
	r.lock.RLock()
	defer r.lock.RUnlock()

	result := make(map[MetricName][]Sample, len(r.buffers))
	for name, buf := range r.buffers {
		c := make([]Sample, len(buf))
		copy(c, buf)
		result[name] = c
	}
	return result
}

// Reset drops every buffer. Throttle state lives in the session store and is
// not affected.
func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.buffers = make(map[MetricName][]Sample)
}

func (r *Recorder) newSample(name MetricName, data Data) Sample {
	sample := Sample{
		Name:      name,
		Timestamp: r.clock.Now().UnixMilli(),
		Data:      cloneData(data),
	}
	if v, ok := sample.Data[valueKey]; ok {
		if f, ok := toFloat(v); ok {
			sample.Value = f
			delete(sample.Data, valueKey)
		}
	}

	if r.store != nil {
		sample.SessionID, _ = gather("session", func() (string, error) {
			return sessionstore.SessionID(r.store), nil
		})
	}
	if r.env == nil {
		return sample
	}
	sample.URL, _ = gather("url", func() (string, error) { return r.env.URL(), nil })
	sample.UserAgent, _ = gather("user-agent", func() (string, error) { return r.env.UserAgent(), nil })
	if vp, ok := gather("viewport", r.env.Viewport); ok {
		sample.Viewport = &vp
	}
	if conn, ok := gather("connection", r.env.Connection); ok {
		sample.Connection = &conn
	}
	return sample
}

// gather calls fn, turning errors and panics into a missing value.
func gather[T any](field string, fn func() (T, error)) (v T, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("field", field).Warnf("context provider panicked: %v", rec)
			var zero T
			v, ok = zero, false
		}
	}()

	v, err := fn()
	if err != nil {
		log.WithField("field", field).Tracef("context unavailable: %v", err)
		return v, false
	}
	return v, true
}
