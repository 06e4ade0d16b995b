package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/auth"
	"github.com/serroba/slop-farmer/internal/ratelimit"
	"go.uber.org/zap"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// clientKey identifies the caller for rate limiting. Authenticated reporters are
// limited per user, everyone else by IP and User-Agent.
func clientKey(ctx huma.Context) string {
	if userID, ok := auth.UserFromContext(ctx.Context()); ok {
		return "user:" + userID.String()
	}

	hash := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return "anon:" + hex.EncodeToString(hash[:])
}

// clientIP extracts the client IP, trusting proxy headers first.
func clientIP(ctx huma.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	// Huma exposes the remote address as the host
	host := ctx.Host()

	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}

	return ip
}

// RateLimit returns a Huma middleware that checks every request against the
// limiter before calling next.
//
// Operations can carry a ratelimit.EndpointConfig under ratelimit.MetadataKey to
// disable limiting, pick a scope or replace the policy with route limits.
func RateLimit(
	api huma.API,
	limiter *ratelimit.Limiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg, _ := ratelimit.ConfigFor(ctx.Operation())
		if cfg.Disabled {
			next(ctx)

			return
		}

		route := getOperationPath(ctx)
		client := clientKey(ctx)

		var (
			decision ratelimit.Decision
			err      error
		)

		if len(cfg.Limits) > 0 {
			decision, err = limiter.CheckRoute(ctx.Context(), client, route, cfg.Limits)
		} else {
			decision, err = limiter.Check(ctx.Context(), client, resolver.Resolve(ctx))
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", route), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if decision.Limit.Max > 0 {
			ctx.SetHeader(HeaderLimit, strconv.FormatInt(decision.Limit.Max, 10))
			ctx.SetHeader(HeaderRemaining, strconv.FormatInt(decision.Remaining, 10))
		}

		if !decision.Allowed {
			reject(api, ctx, decision, route, logger)

			return
		}

		next(ctx)
	}
}

// getOperationPath returns the route template of the matched operation, if any.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

func reject(api huma.API, ctx huma.Context, decision ratelimit.Decision, route string, logger *zap.Logger) {
	limit := decision.Limit

	logger.Warn("rate limit exceeded",
		zap.String("path", route),
		zap.String("method", ctx.Method()),
		zap.String("scope", string(decision.Scope)),
		zap.Int64("count", decision.Count),
		zap.Int64("max", limit.Max),
		zap.Duration("window", limit.Window),
		zap.String("client_ip", clientIP(ctx)),
	)

	msg := fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", decision.Count, limit.Max, limit.Window)
	if decision.Scope != "" {
		msg = fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
			decision.Scope, decision.Count, limit.Max, limit.Window)
	}

	ctx.SetHeader(HeaderRetryAfter, strconv.Itoa(int(decision.RetryAfter().Seconds())))
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}
