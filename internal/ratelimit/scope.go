package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope names a class of requests sharing policy limits.
type Scope string

const (
	// ScopeGlobal applies to every request.
	ScopeGlobal Scope = "global"
	// ScopeRead applies to lookups: safe methods and /check.
	ScopeRead Scope = "read"
	// ScopeWrite applies to any other unsafe method.
	ScopeWrite Scope = "write"
	// ScopeReport applies to slop report submissions, which write to every table.
	ScopeReport Scope = "report"
)

// MetadataKey is the operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig tunes rate limiting for one operation.
//
// Limits, when set, replace the policy for the route and Scope is ignored.
// Without Limits, Scope replaces the method based scope.
type EndpointConfig struct {
	Scope    Scope
	Limits   []LimitConfig
	Disabled bool
}

// Metadata returns operation metadata carrying c.
func (c EndpointConfig) Metadata() map[string]any {
	return map[string]any{MetadataKey: c}
}

// ConfigFor returns the config attached to op, if any.
func ConfigFor(op *huma.Operation) (EndpointConfig, bool) {
	if op == nil || op.Metadata == nil {
		return EndpointConfig{}, false
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)

	return cfg, ok
}

// ScopeResolver determines which scopes apply to a request.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// ScopeResolverFunc adapts a function to ScopeResolver.
type ScopeResolverFunc func(ctx huma.Context) []Scope

func (f ScopeResolverFunc) Resolve(ctx huma.Context) []Scope {
	return f(ctx)
}

// Scopes returns ScopeGlobal plus the scope configured on op, falling back to
// read for safe methods and write for the rest.
func Scopes(op *huma.Operation, method string) []Scope {
	if cfg, ok := ConfigFor(op); ok && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeRead}
	default:
		return []Scope{ScopeGlobal, ScopeWrite}
	}
}

// OperationScopes resolves scopes from the matched operation and the request method.
func OperationScopes() ScopeResolver {
	return ScopeResolverFunc(func(ctx huma.Context) []Scope {
		return Scopes(ctx.Operation(), ctx.Method())
	})
}
