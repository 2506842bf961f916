package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("version.restore", nil)
	m.ObserveOperation("version.restore", errors.New("boom"))
	m.ObserveOperation("version.restore", nil)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.VersionOperationsTotal.WithLabelValues("version.restore", "ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.VersionOperationsTotal.WithLabelValues("version.restore", "error")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/prompts/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/prompts/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	// метка маршрута — шаблон, а не конкретный путь
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/prompts/{uuid}", "200")))
}
