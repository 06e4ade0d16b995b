package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/slop-farmer/internal/metrics"
	"github.com/serroba/slop-farmer/internal/slop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveMerge(t *testing.T) {
	rec := metrics.NewRecorder()

	rec.ObserveMerge(slop.MergeResult{DomainsCreated: 1, PathsCreated: 3, ReportsCreated: 3})
	rec.ObserveMerge(slop.MergeResult{ReportsUpdated: 2})

	count, err := testutil.GatherAndCount(rec.Registry(),
		"slop_farmer_merges_total",
		"slop_farmer_domains_created_total",
		"slop_farmer_paths_created_total",
		"slop_farmer_reports_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}

			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += ":" + l.GetValue()
			}

			values[key] = m.GetCounter().GetValue()
		}
	}

	assert.InDelta(t, 2, values["slop_farmer_merges_total"], 0)
	assert.InDelta(t, 1, values["slop_farmer_domains_created_total"], 0)
	assert.InDelta(t, 3, values["slop_farmer_paths_created_total"], 0)
	assert.InDelta(t, 3, values["slop_farmer_reports_total:created"], 0)
	assert.InDelta(t, 2, values["slop_farmer_reports_total:updated"], 0)
}

func TestRecorder_RequestStarted(t *testing.T) {
	rec := metrics.NewRecorder()

	done := rec.RequestStarted(http.MethodPost, "/report")
	done(http.StatusAccepted)

	count, err := testutil.GatherAndCount(rec.Registry(), "slop_farmer_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	inflight, err := testutil.GatherAndCount(rec.Registry(), "slop_farmer_http_requests_inflight")
	require.NoError(t, err)
	assert.Equal(t, 1, inflight)
}

func TestRecorder_Handler(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.ObserveMerge(slop.MergeResult{DomainsCreated: 1})

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "slop_farmer_domains_created_total 1")
}
