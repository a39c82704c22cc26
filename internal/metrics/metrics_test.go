package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProcessed(t *testing.T) {
	before := testutil.ToFloat64(recordsTotal.WithLabelValues("Valid"))
	RecordProcessed("Valid")
	assert.Equal(t, before+1, testutil.ToFloat64(recordsTotal.WithLabelValues("Valid")))
}

func TestJobStarted(t *testing.T) {
	before := testutil.ToFloat64(jobsRunning)
	done := JobStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(jobsRunning))
	done()
	assert.Equal(t, before, testutil.ToFloat64(jobsRunning))
}

func TestObserveCall(t *testing.T) {
	ObserveCall(DependencyRegistry, time.Now(), nil)
	ObserveCall(DependencyRegistry, time.Now(), errors.New("down"))
	assert.Equal(t, 2, testutil.CollectAndCount(externalCallSeconds, "provider_external_call_duration_seconds"))
}

func TestMiddleware(t *testing.T) {
	m := NewMiddleware("test")
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.Collectors()...)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("404", "GET", "/jobs/{id}")))
}
