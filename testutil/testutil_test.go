/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type MockT struct {
	Failed bool
	Format string
	Args   []interface{}
}

func (t *MockT) FailNow() {
	t.Failed = true
}

func (t *MockT) Errorf(format string, args ...interface{}) {
	t.Failed = true
	t.Format, t.Args = format, args
}

func TestMetricAssertions(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "queue_wait_seconds"})
	hist.Observe(0.1)
	hist.Observe(0.2)
	RequireSamplesCountInHistogram(t, hist, 2)

	mockT := &MockT{}
	require.False(t, AssertSamplesCountInHistogram(mockT, hist, 3))
	require.True(t, mockT.Failed)

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "refreshes_total"})
	counter.Add(3)
	RequireCounterValue(t, counter, 3)

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "in_flight"})
	gauge.Set(5)
	RequireGaugeValue(t, gauge, 5)

	mockT = &MockT{}
	RequireGaugeValue(mockT, gauge, 4)
	require.True(t, mockT.Failed)
}

func TestRequireEnvelopeInRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusOK)
	_, _ = rec.WriteString(`{"meta":{"code":200,"msg":"ok"},"data":{"total":2}}`)

	var data struct {
		Total int `json:"total"`
	}
	msg := RequireEnvelopeInRecorder(t, rec, http.StatusOK, 200, &data)
	require.Equal(t, "ok", msg)
	require.Equal(t, 2, data.Total)
}
