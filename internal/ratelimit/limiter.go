package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts requests per key over a sliding window.
type Store interface {
	// Record counts a request under key and returns how many requests fall
	// inside the window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Decision is the outcome of checking one request.
type Decision struct {
	Allowed bool
	// Scope is the scope of Limit. Empty for route limits.
	Scope Scope
	// Limit is the limit that denied the request or, when allowed, the one
	// with the least headroom. Zero when no limit applied.
	Limit     LimitConfig
	Count     int64
	Remaining int64
}

// RetryAfter is how long a denied client should back off.
func (d Decision) RetryAfter() time.Duration {
	if d.Allowed {
		return 0
	}

	return d.Limit.Window
}

// Limiter checks requests against a policy, or against limits attached to a route.
type Limiter struct {
	store  Store
	policy *Policy
}

// NewLimiter creates a limiter counting in store.
func NewLimiter(store Store, policy *Policy) *Limiter {
	return &Limiter{store: store, policy: policy}
}

type bucket struct {
	key   string
	scope Scope
	limit LimitConfig
}

// Check records the request against every policy limit of scopes.
func (l *Limiter) Check(ctx context.Context, client string, scopes []Scope) (Decision, error) {
	var buckets []bucket

	for _, scope := range scopes {
		for _, limit := range l.policy.Limits[scope] {
			buckets = append(buckets, bucket{
				key:   fmt.Sprintf("%s:%s:%d", client, scope, limit.Window.Milliseconds()),
				scope: scope,
				limit: limit,
			})
		}
	}

	return l.record(ctx, buckets)
}

// CheckRoute records the request against limits that apply to route only.
// Requests are counted per route template, not per concrete path.
func (l *Limiter) CheckRoute(ctx context.Context, client, route string, limits []LimitConfig) (Decision, error) {
	buckets := make([]bucket, 0, len(limits))

	for _, limit := range limits {
		buckets = append(buckets, bucket{
			key:   fmt.Sprintf("%s:route:%s:%d", client, route, limit.Window.Milliseconds()),
			limit: limit,
		})
	}

	return l.record(ctx, buckets)
}

func (l *Limiter) record(ctx context.Context, buckets []bucket) (Decision, error) {
	decision := Decision{Allowed: true}
	tightest := int64(-1)

	for _, b := range buckets {
		count, err := l.store.Record(ctx, b.key, b.limit.Window)
		if err != nil {
			return Decision{}, fmt.Errorf("record %s: %w", b.key, err)
		}

		if count > b.limit.Max {
			return Decision{Scope: b.scope, Limit: b.limit, Count: count}, nil
		}

		if left := b.limit.Max - count; tightest < 0 || left < tightest {
			tightest = left
			decision.Scope = b.scope
			decision.Limit = b.limit
			decision.Count = count
			decision.Remaining = left
		}
	}

	return decision, nil
}
