package perfmon

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// LogHook turns error level log entries of the host application into Error
// samples.
type LogHook struct {
	monitor *Monitor
}

var _ log.Hook = (*LogHook)(nil)

func NewLogHook(m *Monitor) *LogHook {
	return &LogHook{monitor: m}
}

func (h *LogHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *LogHook) Fire(entry *log.Entry) error {
	context := Data{"source": "log", "level": entry.Level.String()}
	var cause error
	for k, v := range entry.Data {
		if err, ok := v.(error); ok && k == log.ErrorKey {
			cause = err
			continue
		}
		context[k] = fmt.Sprint(v)
	}

	data := errorData(cause, context)
	if cause == nil {
		data["message"] = entry.Message
	} else if entry.Message != "" {
		data["message"] = entry.Message + ": " + cause.Error()
	}
	h.monitor.RecordMetric(MetricError, data)
	return nil
}
