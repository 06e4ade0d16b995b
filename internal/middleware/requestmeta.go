package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/serroba/slop-farmer/internal/handlers"
	"github.com/serroba/slop-farmer/internal/messaging"
)

// RequestIDHeader is read from requests and echoed on every response.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestMeta attaches request id, client IP and user-agent to the request context.
// The request id also becomes the correlation id of events published while serving it.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		meta := handlers.RequestMeta{
			RequestID: requestID,
			ClientIP:  clientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		newCtx = messaging.WithCorrelationID(newCtx, requestID)

		ctx.SetHeader(RequestIDHeader, requestID)
		next(huma.WithContext(ctx, newCtx))
	}
}
