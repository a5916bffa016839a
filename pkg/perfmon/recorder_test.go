package perfmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

func TestRecorder_TrimSamples(t *testing.T) {
	recorder := NewRecorder(DefaultBufferSize, newFakeClock(), nil, nil, nil)

	for i := 0; i < 150; i++ {
		recorder.RecordMetric(MetricLongTask, Data{"value": i})
		assert.LessOrEqual(t, len(recorder.GetMetrics(MetricLongTask)), DefaultBufferSize)
	}

	samples := recorder.GetMetrics(MetricLongTask)
	require.Len(t, samples, DefaultBufferSize)
	for i, s := range samples {
		assert.Equal(t, float64(50+i), s.Value)
	}
}

func TestRecorder_BuffersAreIndependent(t *testing.T) {
	recorder := NewRecorder(3, newFakeClock(), nil, nil, nil)

	for i := 0; i < 5; i++ {
		recorder.RecordMetric(MetricLCP, Data{"value": i})
	}
	recorder.RecordMetric(MetricFID, Data{"value": 12})

	assert.Len(t, recorder.GetMetrics(MetricLCP), 3)
	assert.Len(t, recorder.GetMetrics(MetricFID), 1)
	assert.Empty(t, recorder.GetMetrics(MetricCLS))
	assert.Len(t, recorder.AllMetrics(), 2)
}

func TestRecorder_IgnoresEmptyName(t *testing.T) {
	recorder := NewRecorder(10, newFakeClock(), nil, nil, nil)
	recorder.RecordMetric("", Data{"value": 1})
	assert.Empty(t, recorder.AllMetrics())
}

func TestRecorder_StampsContext(t *testing.T) {
	clk := newFakeClock()
	store := sessionstore.NewMemoryStore(0)
	env := NewHostEnvironment("/programs", "Mozilla/5.0")
	env.Update(PageContext{
		Viewport:   &Viewport{Width: 1280, Height: 720},
		Connection: &Connection{EffectiveType: "4g", Downlink: 10, RTT: 50},
	})
	recorder := NewRecorder(10, clk, env, store, nil)

	recorder.RecordMetric(MetricResource, Data{"value": 12.5, "name": "app.js", "size": 2048})

	samples := recorder.GetMetrics(MetricResource)
	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, MetricResource, s.Name)
	assert.Equal(t, 12.5, s.Value)
	assert.Equal(t, epoch.UnixMilli(), s.Timestamp)
	assert.Equal(t, "/programs", s.URL)
	assert.Equal(t, "Mozilla/5.0", s.UserAgent)
	assert.Equal(t, sessionstore.SessionID(store), s.SessionID)
	assert.Equal(t, &Viewport{Width: 1280, Height: 720}, s.Viewport)
	require.NotNil(t, s.Connection)
	assert.Equal(t, "4g", s.Connection.EffectiveType)
	assert.Equal(t, "app.js", s.Text("name"))
	assert.NotContains(t, s.Data, "value")

	size, ok := s.Field("size")
	assert.True(t, ok)
	assert.Equal(t, float64(2048), size)
}

func TestRecorder_DegradesWhenContextFails(t *testing.T) {
	recorder := NewRecorder(10, newFakeClock(), panickingEnvironment{}, nil, nil)

	assert.NotPanics(t, func() {
		recorder.RecordMetric(MetricFCP, Data{"value": 900})
	})

	samples := recorder.GetMetrics(MetricFCP)
	require.Len(t, samples, 1)
	assert.Equal(t, "/ngos", samples[0].URL)
	assert.Empty(t, samples[0].UserAgent)
	assert.Nil(t, samples[0].Viewport)
	assert.Nil(t, samples[0].Connection)
}

func TestRecorder_GetMetricsReturnsCopy(t *testing.T) {
	recorder := NewRecorder(10, newFakeClock(), nil, nil, nil)
	recorder.RecordMetric(MetricLCP, Data{"value": 1000})

	samples := recorder.GetMetrics(MetricLCP)
	samples[0].Value = 1

	assert.Equal(t, float64(1000), recorder.GetMetrics(MetricLCP)[0].Value)
}

func TestRecorder_DataIsCopied(t *testing.T) {
	recorder := NewRecorder(10, newFakeClock(), nil, nil, nil)
	data := Data{"value": 5, "action": "donate"}
	recorder.RecordMetric(MetricUserAction, data)
	data["action"] = "volunteer"

	assert.Equal(t, "donate", recorder.GetMetrics(MetricUserAction)[0].Text("action"))
}

func TestRecorder_ResetKeepsThrottleState(t *testing.T) {
	clk := newFakeClock()
	store := sessionstore.NewMemoryStore(0)
	sender := &countingSender{}
	reporter := NewReporter(sender, store, clk, DefaultThrottleWindow, DefaultSendTimeout, nil, nil)
	recorder := NewRecorder(10, clk, nil, store, reporter)

	recorder.RecordMetric(MetricLCP, Data{"value": 1})
	recorder.Reset()
	recorder.RecordMetric(MetricLCP, Data{"value": 2})
	reporter.Wait()

	assert.Len(t, recorder.GetMetrics(MetricLCP), 1)
	assert.Equal(t, int32(1), sender.count.Load())
	_, ok := store.Get(ThrottleKeyPrefix + string(MetricLCP))
	assert.True(t, ok)
}

func TestSample_Field(t *testing.T) {
	s := Sample{Value: 3, Data: Data{"size": ptr.To(1)}}

	v, ok := s.Field("value")
	assert.True(t, ok)
	assert.Equal(t, float64(3), v)

	_, ok = s.Field("size")
	assert.False(t, ok)

	_, ok = s.Field("missing")
	assert.False(t, ok)
}
