/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/log"
	"github.com/acronis/go-adminclient/log/logtest"
	"github.com/acronis/go-adminclient/testutil"
)

type headerRecorder struct {
	mu      sync.Mutex
	headers []http.Header
}

func (h *headerRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	h.mu.Lock()
	h.headers = append(h.headers, r.Header.Clone())
	h.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
}

func (h *headerRecorder) last() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.headers[len(h.headers)-1]
}

func TestRequestIDRoundTripper(t *testing.T) {
	rec := &headerRecorder{}
	rt := NewRequestIDRoundTripper(rec)

	req := httptest.NewRequest(http.MethodGet, "http://backend/user/query", nil)
	doRequest(t, rt, req)
	generated := rec.last().Get(RequestIDHeader)
	require.Len(t, generated, 20)
	require.Empty(t, req.Header.Get(RequestIDHeader), "original request must not be modified")

	req = httptest.NewRequest(http.MethodGet, "http://backend/user/query", nil)
	req = req.WithContext(NewContextWithRequestID(req.Context(), "ctx-id"))
	doRequest(t, rt, req)
	require.Equal(t, "ctx-id", rec.last().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "http://backend/user/query", nil)
	req.Header.Set(RequestIDHeader, "header-id")
	doRequest(t, rt, req)
	require.Equal(t, "header-id", rec.last().Get(RequestIDHeader))
}

func TestUserAgentRoundTripper(t *testing.T) {
	tests := []struct {
		name     string
		strategy UserAgentUpdateStrategy
		current  string
		want     string
	}{
		{"set if empty, empty", UserAgentUpdateStrategySetIfEmpty, "", "adminctl/1.0"},
		{"set if empty, present", UserAgentUpdateStrategySetIfEmpty, "curl/8", "curl/8"},
		{"append", UserAgentUpdateStrategyAppend, "curl/8", "curl/8 adminctl/1.0"},
		{"prepend", UserAgentUpdateStrategyPrepend, "curl/8", "adminctl/1.0 curl/8"},
		{"prepend, empty", UserAgentUpdateStrategyPrepend, "", "adminctl/1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &headerRecorder{}
			rt := NewUserAgentRoundTripperWithOpts(rec, "adminctl/1.0", UserAgentRoundTripperOpts{UpdateStrategy: tt.strategy})
			req := httptest.NewRequest(http.MethodGet, "http://backend/", nil)
			if tt.current != "" {
				req.Header.Set("User-Agent", tt.current)
			}
			doRequest(t, rt, req)
			require.Equal(t, tt.want, rec.last().Get("User-Agent"))
		})
	}
}

func TestRateLimitingRoundTripper(t *testing.T) {
	rt, err := NewRateLimitingRoundTripperWithOpts(&headerRecorder{}, 20, RateLimitingRoundTripperOpts{Burst: 1})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		doRequest(t, rt, httptest.NewRequest(http.MethodGet, "http://backend/", nil))
	}
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitingRoundTripper_WaitTimeout(t *testing.T) {
	rt, err := NewRateLimitingRoundTripperWithOpts(&headerRecorder{}, 1, RateLimitingRoundTripperOpts{
		WaitTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	doRequest(t, rt, httptest.NewRequest(http.MethodGet, "http://backend/", nil))
	_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend/", nil))
	var waitErr *RateLimitingWaitError
	require.True(t, errors.As(err, &waitErr))

	_, err = NewRateLimitingRoundTripper(&headerRecorder{}, 0)
	require.Error(t, err)
}

func TestLoggingRoundTripper(t *testing.T) {
	srv := newScriptedServer(http.StatusOK, http.StatusInternalServerError)
	defer srv.Close()

	logger := logtest.NewRecorder()
	rt := NewLoggingRoundTripperWithOpts(http.DefaultTransport, LoggingRoundTripperOpts{
		LoggerProvider: func(context.Context) log.FieldLogger { return logger },
		ClientType:     "admin-api",
		Mode:           LoggingModeFailed,
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/user/query", nil)
	require.NoError(t, err)
	doRequest(t, rt, req)
	require.Empty(t, logger.Entries())

	req, err = http.NewRequestWithContext(
		NewContextWithRequestType(context.Background(), "departments"), http.MethodGet, srv.URL+"/user/department/", nil)
	require.NoError(t, err)
	doRequest(t, rt, req)
	entry, ok := logger.FindEntry("client http request GET /user/department/")
	require.True(t, ok)
	require.Equal(t, log.LevelInfo, entry.Level)
	status, ok := entry.FindField("status")
	require.True(t, ok)
	require.EqualValues(t, http.StatusInternalServerError, status.Int)
	reqType, ok := entry.FindField("request_type")
	require.True(t, ok)
	require.Equal(t, "departments", string(reqType.Bytes))
}

func TestLoggingRoundTripper_Error(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serverURL := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	logger := logtest.NewRecorder()
	rt := NewLoggingRoundTripper(http.DefaultTransport, func(context.Context) log.FieldLogger { return logger })
	req, err := http.NewRequest(http.MethodPost, serverURL+"/user/login", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)

	entry, ok := logger.FindEntry("client http request POST /user/login")
	require.True(t, ok)
	require.Equal(t, log.LevelError, entry.Level)
	_, ok = entry.FindField("status")
	require.False(t, ok)
}

func TestMetricsRoundTripper(t *testing.T) {
	collector := NewPrometheusMetricsCollector("")
	rt := NewMetricsRoundTripper(&headerRecorder{}, collector)

	doRequest(t, rt, httptest.NewRequest(http.MethodGet, "http://backend/user/query", nil))
	doRequest(t, rt, httptest.NewRequest(http.MethodGet, "http://backend/user/query", nil))

	hist := collector.Durations.WithLabelValues(DefaultClientType, "backend", "GET /user/query", "200").(prometheus.Histogram)
	testutil.RequireSamplesCountInHistogram(t, hist, 2)
}
