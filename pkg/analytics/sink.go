package analytics

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

// Report is an accepted analytics event.
type Report struct {
	perfmon.AnalyticsEvent
	ReceivedAt int64 `json:"receivedAt"`
}

// Sink is the collector side of the analytics endpoint. It keeps the most
// recent reports of every metric in memory.
type Sink struct {
	cfg *Options

	mu      sync.RWMutex
	reports map[perfmon.MetricName][]Report
	total   int

	outMu sync.Mutex
}

func NewSink(opts ...Option) *Sink {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Sink{
		cfg:     options,
		reports: make(map[perfmon.MetricName][]Report),
	}
}

// RegisterRoutes mounts the collector endpoint on router.
func (s *Sink) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(Path, s.receive).Methods(http.MethodPost)
	router.HandleFunc(Path, s.list).Methods(http.MethodGet)
}

// Handler returns a router serving only the collector endpoint.
func (s *Sink) Handler() http.Handler {
	router := mux.NewRouter()
	s.RegisterRoutes(router)
	return router
}

// Accept stores event and appends it to the output when one is configured.
func (s *Sink) Accept(event perfmon.AnalyticsEvent) (Report, error) {
	if event.Metric == "" {
		return Report{}, errors.New("metric is required")
	}
	report := Report{AnalyticsEvent: event, ReceivedAt: s.cfg.Clock.Now().UnixMilli()}

	s.mu.Lock()
	buf := append(s.reports[event.Metric], report)
	if len(buf) > s.cfg.HistorySize {
		buf = buf[len(buf)-s.cfg.HistorySize:]
	}
	s.reports[event.Metric] = buf
	s.total++
	s.mu.Unlock()

	return report, s.write(report)
}

// Reports returns the retained reports of metric, oldest first.
func (s *Sink) Reports(metric perfmon.MetricName) []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, len(s.reports[metric]))
	copy(out, s.reports[metric])
	return out
}

// Metrics lists the metric names that have been reported, sorted.
func (s *Sink) Metrics() []perfmon.MetricName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]perfmon.MetricName, 0, len(s.reports))
	for name := range s.reports {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Total is the number of reports accepted since creation.
func (s *Sink) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *Sink) write(report Report) error {
	if s.cfg.Output == nil {
		return nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return errors.WrapIf(err, "failed to encode report")
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := s.cfg.Output.Write(append(b, '\n')); err != nil {
		return errors.WrapIf(err, "failed to write report")
	}
	return nil
}

func (s *Sink) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodySize.Bytes())))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var event perfmon.AnalyticsEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Debugf("rejected analytics report: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.Accept(event); err != nil {
		if event.Metric == "" {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// the report is kept in memory even when the output fails
		log.WithField("metric", event.Metric).Errorf("error writing analytics report: %v", err)
	}

	log.WithFields(map[string]interface{}{
		"metric": event.Metric,
		"page":   event.Page,
	}).Debug("accepted analytics report")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Sink) list(w http.ResponseWriter, r *http.Request) {
	var result interface{}
	if metric := r.URL.Query().Get("metric"); metric != "" {
		reports := s.Reports(perfmon.MetricName(metric))
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(reports) {
			reports = reports[len(reports)-limit:]
		}
		result = reports
	} else {
		all := make(map[perfmon.MetricName]int)
		for _, name := range s.Metrics() {
			all[name] = len(s.Reports(name))
		}
		result = map[string]interface{}{"total": s.Total(), "metrics": all}
	}

	b, err := json.Marshal(result)
	if err != nil {
		log.Errorf("error encoding analytics reports: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
