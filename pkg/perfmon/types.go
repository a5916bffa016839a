package perfmon

import (
	"maps"

	"github.com/goccy/go-json"
)

// MetricName identifies one buffer of samples.
type MetricName string

const (
	MetricLCP          MetricName = "LCP"
	MetricFID          MetricName = "FID"
	MetricCLS          MetricName = "CLS"
	MetricFCP          MetricName = "FCP"
	MetricTTFB         MetricName = "TTFB"
	MetricLongTask     MetricName = "LongTask"
	MetricNavigation   MetricName = "Navigation"
	MetricResource     MetricName = "Resource"
	MetricUserAction   MetricName = "UserAction"
	MetricError        MetricName = "Error"
	MetricCustomMetric MetricName = "CustomMetric"
)

// WebVitals lists the metrics reported as web vitals, in report order.
var WebVitals = []MetricName{MetricLCP, MetricFID, MetricCLS, MetricFCP, MetricTTFB}

// Data is the metric specific payload passed to RecordMetric. The "value" key,
// when numeric, becomes the sample value.
type Data map[string]interface{}

const valueKey = "value"

// Viewport is the visible page area in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Connection describes the network quality reported by the host.
type Connection struct {
	EffectiveType string  `json:"effectiveType,omitempty"`
	Downlink      float64 `json:"downlink,omitempty"`
	RTT           float64 `json:"rtt,omitempty"`
	SaveData      bool    `json:"saveData"`
}

// Sample is one recorded observation. Samples are never mutated after they are
// recorded; callers must treat Data as read-only.
type Sample struct {
	Name       MetricName  `json:"name"`
	Value      float64     `json:"value"`
	Timestamp  int64       `json:"timestamp"`
	URL        string      `json:"url"`
	Data       Data        `json:"data,omitempty"`
	SessionID  string      `json:"sessionId"`
	UserAgent  string      `json:"userAgent,omitempty"`
	Viewport   *Viewport   `json:"viewport,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// Field returns a numeric auxiliary field of the sample.
func (s Sample) Field(key string) (float64, bool) {
	if key == valueKey {
		return s.Value, true
	}
	v, ok := s.Data[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Text returns an auxiliary field formatted as a string.
func (s Sample) Text(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func cloneData(data Data) Data {
	if data == nil {
		return Data{}
	}
	return maps.Clone(data)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
