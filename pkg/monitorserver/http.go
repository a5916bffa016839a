package monitorserver

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure/v2"
	log "github.com/sirupsen/logrus"

	"github.com/sevadaan/perfmon/pkg/entrystream"
	"github.com/sevadaan/perfmon/pkg/perfmon"
)

const apiPrefix = "/api/performance"

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.prometheus).Methods(http.MethodGet)

	api := s.router.PathPrefix(apiPrefix).Subrouter()
	api.HandleFunc("/entries", s.ingestEntries).Methods(http.MethodPost)
	api.HandleFunc("/actions", s.trackAction).Methods(http.MethodPost)
	api.HandleFunc("/errors", s.trackError).Methods(http.MethodPost)
	api.HandleFunc("/custom", s.trackCustom).Methods(http.MethodPost)

	api.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.summary).Methods(http.MethodGet)
	api.HandleFunc("/budget", s.budget).Methods(http.MethodGet)
	api.HandleFunc("/report", s.report).Methods(http.MethodGet)
	api.HandleFunc("/process", s.processStats).Methods(http.MethodGet)

	api.HandleFunc("/enable", s.control(s.monitor.Enable)).Methods(http.MethodPost)
	api.HandleFunc("/disable", s.control(s.monitor.Disable)).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.control(s.monitor.Reset)).Methods(http.MethodPost)
	api.HandleFunc("/route-change", s.control(s.monitor.RouteChanged)).Methods(http.MethodPost)
}

type actionRequest struct {
	Action  string       `json:"action"`
	Details perfmon.Data `json:"details"`
}

type errorRequest struct {
	Message string       `json:"message"`
	Stack   string       `json:"stack"`
	Context perfmon.Data `json:"context"`
}

type customRequest struct {
	Name    string       `json:"name"`
	Value   float64      `json:"value"`
	Details perfmon.Data `json:"details"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	enabled := s.monitor.Enabled()
	observers := s.monitor.Observers()
	log.WithFields(map[string]interface{}{
		"enabled":   enabled,
		"observers": observers,
	}).Debug("got monitor status")

	if !enabled || observers == 0 {
		w.WriteHeader(http.StatusExpectationFailed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"enabled":   s.monitor.Enabled(),
		"observers": s.monitor.Observers(),
		"sessionId": s.monitor.SessionID(),
	})
}

func (s *Server) ingestEntries(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.rejected.Add(1)
		http.Error(w, "ingest rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	batch, err := entrystream.Decode(body)
	if err != nil {
		s.rejected.Add(1)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := entrystream.Apply(batch, s.dispatcher, s.env)
	if err != nil {
		s.rejected.Add(1)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ingested.Add(1)

	log.WithFields(map[string]interface{}{
		"type":      batch.Type,
		"entries":   len(batch.Entries),
		"observers": n,
	}).Trace("ingested entry batch")
	s.writeJSON(w, http.StatusAccepted, map[string]int{"observers": n})
}

func (s *Server) trackAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Action == "" {
		http.Error(w, "action is required", http.StatusBadRequest)
		return
	}
	s.monitor.TrackUserAction(req.Action, req.Details)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) trackError(w http.ResponseWriter, r *http.Request) {
	var req errorRequest
	if !s.decode(w, r, &req) {
		return
	}

	data := perfmon.Data{}
	for k, v := range req.Context {
		data[k] = v
	}
	data["message"] = req.Message
	if req.Message == "" {
		data["message"] = "unknown error"
	}
	if req.Stack != "" {
		data["stack"] = req.Stack
	}
	s.monitor.RecordMetric(perfmon.MetricError, data)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) trackCustom(w http.ResponseWriter, r *http.Request) {
	var req customRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s.monitor.TrackCustomMetric(req.Name, req.Value, req.Details)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		s.writeJSON(w, http.StatusOK, s.monitor.GetMetrics(perfmon.MetricName(name)))
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.AllMetrics())
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	summary := s.monitor.GetPerformanceSummary()

	hash, err := hashstructure.Hash(summary, hashstructure.FormatV2, nil)
	if err != nil {
		log.Errorf("error hashing summary: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	etag := fmt.Sprintf(`"%x"`, hash)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) budget(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckPerformanceBudget()
	log.WithField("passed", report.Passed).Debug("checked performance budget")

	status := http.StatusOK
	if !report.Passed {
		status = http.StatusExpectationFailed
	}
	s.writeJSON(w, status, report)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	b, err := s.monitor.GenerateReport()
	if err != nil {
		log.Errorf("error generating report: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) processStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "process sampling is disabled", http.StatusNotFound)
		return
	}

	window := time.Minute
	if v := r.URL.Query().Get("average"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		window = d
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"window":           window.String(),
		"cpu_usage":        s.stats.AverageCPUUsage(window),
		"memory_rss_bytes": s.stats.AverageMemoryUsage(window),
	})
}

func (s *Server) control(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		log.WithField("path", r.URL.Path).Info("monitor state changed")
		w.WriteHeader(http.StatusNoContent)
	}
}

// readBody reads the request body within the configured size limit. It
// answers the request itself when reading fails.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodySize.Bytes())))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.rejected.Add(1)
			http.Error(w, fmt.Sprintf("body exceeds %s", s.cfg.MaxBodySize.HR()), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("error encoding response to json: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
