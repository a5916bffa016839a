package monitorserver

import (
	"net/http"
	"sort"

	prom "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/ptr"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

const (
	metricsNamespace = "perfmon_"
	metricLabel      = "metric"

	textContentType = "text/plain; version=0.0.4; charset=utf-8"
)

// prometheus writes the monitor state in the Prometheus text format.
func (s *Server) prometheus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", textContentType)
	w.WriteHeader(http.StatusOK)
	for _, mf := range s.metricFamilies() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			log.Errorf("error writing metric family %s: %v", mf.GetName(), err)
			return
		}
	}
}

func (s *Server) metricFamilies() []*prom.MetricFamily {
	buffers := s.monitor.AllMetrics()
	summary := perfmon.Summarize(buffers)
	budget := perfmon.CheckBudget(buffers, s.monitor.Budgets())

	samples := gaugeFamily("samples", "Number of samples currently buffered per metric.")
	names := make([]string, 0, len(buffers))
	for name := range buffers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		samples.Metric = append(samples.Metric, gauge(float64(len(buffers[perfmon.MetricName(name)])), metricLabel, name))
	}

	vitals := gaugeFamily("web_vital", "Latest value of each web vital.")
	for _, name := range perfmon.WebVitals {
		if v, ok := summary.WebVitals[name]; ok {
			vitals.Metric = append(vitals.Metric, gauge(v, metricLabel, string(name)))
		}
	}

	exceeded := gaugeFamily("budget_exceeded", "Whether the latest value of a metric is over its budget.")
	for _, result := range budget.Results {
		exceeded.Metric = append(exceeded.Metric, gauge(boolValue(!result.Passed), metricLabel, string(result.Metric)))
	}

	families := []*prom.MetricFamily{
		samples,
		vitals,
		exceeded,
		singleGauge("budget_passed", "Whether every budgeted metric is within budget.", boolValue(budget.Passed)),
		singleGauge("page_load_time_milliseconds", "Latest page load time.", summary.PageLoadTime),
		singleGauge("resource_size_bytes", "Transfer size of buffered resources.", summary.ResourceSize),
		singleGauge("enabled", "Whether the monitor records samples.", boolValue(s.monitor.Enabled())),
		singleGauge("observers", "Number of registered entry observers.", float64(s.monitor.Observers())),
		singleCounter("ingested_batches_total", "Entry batches accepted by the ingest endpoint.", float64(s.ingested.Load())),
		singleCounter("rejected_requests_total", "Ingest requests rejected as invalid, too large or rate limited.", float64(s.rejected.Load())),
	}

	if s.stats != nil {
		if latest, ok := s.stats.Latest(); ok {
			families = append(families,
				singleCounter("process_cpu_seconds_total", "Total user and system CPU time of the server process.", latest.CPUTimeSec),
				singleGauge("process_resident_memory_bytes", "Resident memory of the server process.", float64(latest.MemoryRSS)),
			)
		}
	}

	// empty families are not valid in the text format
	out := families[:0]
	for _, mf := range families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func gaugeFamily(name, help string) *prom.MetricFamily {
	return &prom.MetricFamily{
		Name: ptr.To(metricsNamespace + name),
		Help: ptr.To(help),
		Type: prom.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...string) *prom.Metric {
	m := &prom.Metric{Gauge: &prom.Gauge{Value: ptr.To(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &prom.LabelPair{Name: ptr.To(labels[i]), Value: ptr.To(labels[i+1])})
	}
	return m
}

func singleGauge(name, help string, v float64) *prom.MetricFamily {
	mf := gaugeFamily(name, help)
	mf.Metric = []*prom.Metric{gauge(v)}
	return mf
}

func singleCounter(name, help string, v float64) *prom.MetricFamily {
	return &prom.MetricFamily{
		Name:   ptr.To(metricsNamespace + name),
		Help:   ptr.To(help),
		Type:   prom.MetricType_COUNTER.Enum(),
		Metric: []*prom.Metric{{Counter: &prom.Counter{Value: ptr.To(v)}}},
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
