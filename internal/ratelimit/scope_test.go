package ratelimit_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestScopes(t *testing.T) {
	t.Parallel()

	reportOp := &huma.Operation{
		Metadata: ratelimit.EndpointConfig{Scope: ratelimit.ScopeReport}.Metadata(),
	}
	customOp := &huma.Operation{
		Metadata: ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 1}},
		}.Metadata(),
	}

	tests := []struct {
		name   string
		op     *huma.Operation
		method string
		want   []ratelimit.Scope
	}{
		{"GET without operation is read", nil, http.MethodGet, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeRead}},
		{"HEAD is read", nil, http.MethodHead, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeRead}},
		{"OPTIONS is read", nil, http.MethodOptions, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeRead}},
		{"POST is write", nil, http.MethodPost, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}},
		{"DELETE is write", nil, http.MethodDelete, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}},
		{"operation without metadata uses method", &huma.Operation{}, http.MethodPost, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}},
		{"configured scope wins over method", reportOp, http.MethodPost, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeReport}},
		{"custom limits without scope use method", customOp, http.MethodPost, []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}},
		{
			"unrelated metadata is ignored",
			&huma.Operation{Metadata: map[string]any{ratelimit.MetadataKey: "nope"}},
			http.MethodGet,
			[]ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeRead},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ratelimit.Scopes(tt.op, tt.method))
		})
	}
}

func TestConfigFor(t *testing.T) {
	t.Run("nil operation", func(t *testing.T) {
		_, ok := ratelimit.ConfigFor(nil)
		assert.False(t, ok)
	})

	t.Run("round trips through metadata", func(t *testing.T) {
		cfg := ratelimit.EndpointConfig{Disabled: true}

		got, ok := ratelimit.ConfigFor(&huma.Operation{Metadata: cfg.Metadata()})

		assert.True(t, ok)
		assert.True(t, got.Disabled)
	})
}
