package ratelimit

import "time"

// LimitConfig caps requests to Max within a sliding Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced for it.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder starts an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{policy: &Policy{Limits: make(map[Scope][]LimitConfig)}}
}

// AddLimit appends a limit to scope. Non-positive values are ignored.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	if maxRequests <= 0 || window <= 0 {
		return b
	}

	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Window: window, Max: maxRequests})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}
