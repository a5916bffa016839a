package analytics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "http://localhost:8001", want: "http://localhost:8001/api/analytics/performance"},
		{base: "http://localhost:8001/", want: "http://localhost:8001/api/analytics/performance"},
		{base: "", want: "/api/analytics/performance"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NewClient(tt.base).url)
	}
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		wantErr    string
	}{
		{name: "no content", statusCode: http.StatusNoContent},
		{name: "ok", statusCode: http.StatusOK, response: "ok"},
		{name: "server error", statusCode: http.StatusInternalServerError, response: "boom\n", wantErr: "HTTP 500: boom"},
		{name: "rejected", statusCode: http.StatusBadRequest, response: "metric is required", wantErr: "HTTP 400: metric is required"},
	}

	event := perfmon.AnalyticsEvent{
		Metric:    perfmon.MetricLCP,
		Data:      perfmon.Data{"value": 1800.5},
		Timestamp: 1768046400000,
		Page:      "/ngos",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got perfmon.AnalyticsEvent
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, Path, r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				b, _ := io.ReadAll(r.Body)
				assert.NoError(t, json.Unmarshal(b, &got))
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			err := NewClient(server.URL).Send(context.Background(), event)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, event, got)
		})
	}
}

func TestClient_SendHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewClient(server.URL).Send(ctx, perfmon.AnalyticsEvent{Metric: perfmon.MetricFID})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
