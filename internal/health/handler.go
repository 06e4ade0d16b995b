package health

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/slop-farmer/internal/ratelimit"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	healthy        = "healthy"
	unhealthy      = "unhealthy"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHandler creates a health handler over the named dependencies.
// A nil checker is skipped.
func NewHandler(checkers map[string]Checker) *Handler {
	active := make(map[string]Checker, len(checkers))

	for name, c := range checkers {
		if c != nil {
			active[name] = c
		}
	}

	return &Handler{checkers: active, timeout: 2 * time.Second}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = statusOK
	resp.Body.Dependencies = make(map[string]string, len(h.checkers))

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err := h.checkers[name].Ping(ctx); err != nil {
			resp.Body.Dependencies[name] = unhealthy
			resp.Body.Status = statusDegraded

			continue
		}

		resp.Body.Dependencies[name] = healthy
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Ops"},
		Metadata:    ratelimit.EndpointConfig{Disabled: true}.Metadata(),
	}, h.Check)
}
