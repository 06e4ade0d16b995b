package middleware

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/metrics"
)

// Metrics records request counts and latencies labelled by route template.
func Metrics(recorder *metrics.Recorder) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		path := getOperationPath(ctx)
		if path == "" {
			path = "unmatched"
		}

		done := recorder.RequestStarted(ctx.Method(), path)

		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = http.StatusOK
		}

		done(status)
	}
}
