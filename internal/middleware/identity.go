package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/auth"
	"go.uber.org/zap"
)

// Identity resolves an optional bearer token to the reporting user.
// Requests without an Authorization header pass through anonymously; a header
// that is present but invalid is rejected with 401.
func Identity(
	api huma.API, verifier *auth.Verifier, logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		if header == "" {
			next(ctx)

			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid authorization header format")

			return
		}

		userID, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("rejected bearer token", zap.String("client_ip", clientIP(ctx)), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")

			return
		}

		next(huma.WithContext(ctx, auth.ContextWithUser(ctx.Context(), userID)))
	}
}
