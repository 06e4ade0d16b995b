package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/slop-farmer/internal/metrics"
	"github.com/serroba/slop-farmer/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	recorder := metrics.NewRecorder()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.Metrics(recorder))

	huma.Get(api, "/items/{id}", func(_ context.Context, _ *struct {
		ID string `path:"id"`
	}) (*testOutput, error) {
		return &testOutput{Body: "ok"}, nil
	})

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	expected := `
# HELP slop_farmer_http_requests_total Total number of HTTP requests.
# TYPE slop_farmer_http_requests_total counter
slop_farmer_http_requests_total{method="GET",path="/items/{id}",status="200"} 2
`
	err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected),
		"slop_farmer_http_requests_total")
	assert.NoError(t, err)
}
