package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/ratelimit"
)

// RegisterRoutes registers the slop and account routes with per-endpoint rate limit configuration.
func RegisterRoutes(api huma.API, slopHandler *SlopHandler, accountHandler *AccountHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "check-urls",
		Method:      http.MethodPost,
		Path:        "/check",
		Summary:     "Check URLs",
		Description: "Returns the domains among the submitted URLs that were reported before, with all their known paths.",
		Tags:        []string{"Slop"},
		Metadata:    ratelimit.EndpointConfig{Scope: ratelimit.ScopeRead}.Metadata(),
	}, slopHandler.Check)

	// Reports write to every table, so they get their own scope
	huma.Register(api, huma.Operation{
		OperationID:   "report-urls",
		Method:        http.MethodPost,
		Path:          "/report",
		Summary:       "Report slop URLs",
		Description:   "Stores the submitted URLs. With a bearer token the report is attributed to the verified user.",
		Tags:          []string{"Slop"},
		DefaultStatus: http.StatusAccepted,
		Metadata:      ratelimit.EndpointConfig{Scope: ratelimit.ScopeReport}.Metadata(),
	}, slopHandler.Report)

	huma.Register(api, huma.Operation{
		OperationID: "top-offenders",
		Method:      http.MethodGet,
		Path:        "/top",
		Summary:     "Top offending domains",
		Description: "Ranks domains by the number of distinct reported paths.",
		Tags:        []string{"Slop"},
	}, slopHandler.Top)

	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/signup",
		Summary:       "Sign up",
		Description:   "Creates an unverified reporter account and emails a verification token.",
		Tags:          []string{"Accounts"},
		DefaultStatus: http.StatusCreated,
		Metadata:      ratelimit.EndpointConfig{Scope: ratelimit.ScopeWrite}.Metadata(),
	}, accountHandler.Signup)

	huma.Register(api, huma.Operation{
		OperationID:   "verify-email",
		Method:        http.MethodPost,
		Path:          "/verify",
		Summary:       "Verify email",
		Description:   "Consumes an email verification token.",
		Tags:          []string{"Accounts"},
		DefaultStatus: http.StatusNoContent,
		Metadata: ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{
				{Window: time.Minute, Max: 10},
				{Window: time.Hour, Max: 50},
			},
		}.Metadata(),
	}, accountHandler.Verify)
}
