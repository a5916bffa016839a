package perfmon

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// EntryType is a native performance entry type.
type EntryType string

const (
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	EntryFirstInput             EntryType = "first-input"
	EntryLayoutShift            EntryType = "layout-shift"
	EntryLongTask               EntryType = "longtask"
	EntryNavigation             EntryType = "navigation"
	EntryResource               EntryType = "resource"
	EntryPaint                  EntryType = "paint"
)

// EntryTypes lists every entry type the registry observes, in registration order.
var EntryTypes = []EntryType{
	EntryLargestContentfulPaint,
	EntryFirstInput,
	EntryLayoutShift,
	EntryLongTask,
	EntryNavigation,
	EntryResource,
	EntryPaint,
}

const firstContentfulPaint = "first-contentful-paint"

// Entry is a native performance entry. Only the fields relevant to its type
// are set.
type Entry struct {
	Name      string    `json:"name,omitempty"`
	EntryType EntryType `json:"entryType,omitempty"`
	StartTime float64   `json:"startTime"`
	Duration  float64   `json:"duration,omitempty"`

	// first-input
	ProcessingStart float64 `json:"processingStart,omitempty"`

	// layout-shift
	Value          float64 `json:"value,omitempty"`
	HadRecentInput bool    `json:"hadRecentInput,omitempty"`

	// resource
	InitiatorType string   `json:"initiatorType,omitempty"`
	TransferSize  *float64 `json:"transferSize,omitempty"`

	// navigation
	FetchStart                 float64 `json:"fetchStart,omitempty"`
	RequestStart               float64 `json:"requestStart,omitempty"`
	ResponseStart              float64 `json:"responseStart,omitempty"`
	DomInteractive             float64 `json:"domInteractive,omitempty"`
	DomContentLoadedEventStart float64 `json:"domContentLoadedEventStart,omitempty"`
	DomContentLoadedEventEnd   float64 `json:"domContentLoadedEventEnd,omitempty"`
	LoadEventStart             float64 `json:"loadEventStart,omitempty"`
	LoadEventEnd               float64 `json:"loadEventEnd,omitempty"`
}

// Observer is a registered subscription to one entry type.
type Observer interface {
	Disconnect()
}

// ObserverSource delivers batches of native entries of one type to callback
// until the returned Observer is disconnected.
type ObserverSource interface {
	Observe(entryType EntryType, callback func(entries []Entry)) (Observer, error)
}

// MetricSink receives translated samples.
type MetricSink interface {
	RecordMetric(name MetricName, data Data)
}

// Registry owns one observer per entry type and translates native entries
// into metrics.
type Registry struct {
	source ObserverSource
	sink   MetricSink

	mu         sync.Mutex
	observers  []Observer
	generation uint64
	active     bool
	cls        float64
}

func NewRegistry(source ObserverSource, sink MetricSink) *Registry {
	return &Registry{source: source, sink: sink}
}

// Initialize registers one observer per entry type. Types the source cannot
// observe are skipped with a warning. It returns the number of registered
// observers.
func (r *Registry) Initialize() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnectLocked()
	r.generation++
	r.active = true
	r.cls = 0

	if r.source == nil {
		log.Warn("no performance entry source configured, observers disabled")
		return 0
	}

	gen := r.generation
	for _, entryType := range EntryTypes {
		handler := r.handlerFor(entryType)
		observer, err := r.observe(entryType, func(entries []Entry) {
			if !r.current(gen) {
				return
			}
			handler(entries)
		})
		if err != nil {
			log.WithField("entry-type", entryType).Warnf("performance observer not registered: %v", err)
			continue
		}
		r.observers = append(r.observers, observer)
	}
	return len(r.observers)
}

// Disable disconnects every observer. Entries delivered afterwards are ignored.
func (r *Registry) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectLocked()
	r.active = false
}

// ResetLayoutShift restarts the cumulative layout shift sum, for hosts that
// change views without a full page load.
func (r *Registry) ResetLayoutShift() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cls = 0
}

// Observers returns the number of registered observers.
func (r *Registry) Observers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *Registry) observe(entryType EntryType, cb func([]Entry)) (observer Observer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			observer, err = nil, ErrUnsupportedEntryType
		}
	}()
	return r.source.Observe(entryType, cb)
}

func (r *Registry) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active && r.generation == gen
}

func (r *Registry) disconnectLocked() {
	for _, observer := range r.observers {
		observer.Disconnect()
	}
	r.observers = nil
}

func (r *Registry) handlerFor(entryType EntryType) func([]Entry) {
	switch entryType {
	case EntryLargestContentfulPaint:
		return r.onLargestContentfulPaint
	case EntryFirstInput:
		return r.onFirstInput
	case EntryLayoutShift:
		return r.onLayoutShift
	case EntryLongTask:
		return r.onLongTask
	case EntryNavigation:
		return r.onNavigation
	case EntryResource:
		return r.onResource
	case EntryPaint:
		return r.onPaint
	default:
		return func([]Entry) {}
	}
}

// The latest candidate in a batch supersedes earlier ones.
func (r *Registry) onLargestContentfulPaint(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	last := entries[len(entries)-1]
	r.sink.RecordMetric(MetricLCP, Data{valueKey: last.StartTime})
}

func (r *Registry) onFirstInput(entries []Entry) {
	for _, e := range entries {
		r.sink.RecordMetric(MetricFID, Data{valueKey: e.ProcessingStart - e.StartTime})
	}
}

// Shifts caused by recent input are excluded; the running total is recorded
// once per batch.
func (r *Registry) onLayoutShift(entries []Entry) {
	r.mu.Lock()
	for _, e := range entries {
		if !e.HadRecentInput {
			r.cls += e.Value
		}
	}
	total := r.cls
	r.mu.Unlock()

	r.sink.RecordMetric(MetricCLS, Data{valueKey: total})
}

func (r *Registry) onLongTask(entries []Entry) {
	for _, e := range entries {
		r.sink.RecordMetric(MetricLongTask, Data{
			valueKey:    e.Duration,
			"duration":  e.Duration,
			"startTime": e.StartTime,
		})
	}
}

func (r *Registry) onNavigation(entries []Entry) {
	for _, e := range entries {
		loadComplete := e.LoadEventEnd - e.LoadEventStart
		r.sink.RecordMetric(MetricNavigation, Data{
			valueKey:           loadComplete,
			"domContentLoaded": e.DomContentLoadedEventEnd - e.DomContentLoadedEventStart,
			"loadComplete":     loadComplete,
			"domInteractive":   e.DomInteractive - e.FetchStart,
		})
		if e.ResponseStart > 0 {
			r.sink.RecordMetric(MetricTTFB, Data{valueKey: e.ResponseStart - e.RequestStart})
		}
	}
}

func (r *Registry) onResource(entries []Entry) {
	for _, e := range entries {
		if e.InitiatorType == "" {
			continue
		}
		size := 0.0
		if e.TransferSize != nil {
			size = *e.TransferSize
		}
		r.sink.RecordMetric(MetricResource, Data{
			valueKey:   e.Duration,
			"name":     e.Name,
			"type":     e.InitiatorType,
			"duration": e.Duration,
			"size":     size,
		})
	}
}

func (r *Registry) onPaint(entries []Entry) {
	for _, e := range entries {
		if e.Name == firstContentfulPaint {
			r.sink.RecordMetric(MetricFCP, Data{valueKey: e.StartTime})
		}
	}
}
