package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/serroba/slop-farmer/internal/accounts"
	"github.com/serroba/slop-farmer/internal/auth"
	"github.com/serroba/slop-farmer/internal/slop"
	"go.uber.org/zap"
)

// UserLookup resolves reporters by id.
type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*accounts.User, error)
}

// SlopHandler handles checking and reporting slop URLs.
type SlopHandler struct {
	service *slop.Service
	users   UserLookup
	logger  *zap.Logger
}

// NewSlopHandler creates a new slop handler.
func NewSlopHandler(service *slop.Service, users UserLookup, logger *zap.Logger) *SlopHandler {
	return &SlopHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

func (h *SlopHandler) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	domains, err := h.service.Check(ctx, req.Body.URLs)
	if err != nil {
		return nil, h.translate(ctx, err, "failed to check urls")
	}

	resp := &CheckResponse{}
	resp.Body.Domains = make([]DomainView, 0, len(domains))

	for _, d := range domains {
		view := DomainView{ID: d.ID, Name: d.Name, Paths: make([]PathView, 0, len(d.Paths))}
		for _, p := range d.Paths {
			view.Paths = append(view.Paths, PathView{ID: p.ID, Value: p.Value})
		}

		resp.Body.Domains = append(resp.Body.Domains, view)
	}

	return resp, nil
}

func (h *SlopHandler) Report(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	reporter, err := h.reporter(ctx)
	if err != nil {
		return nil, err
	}

	meta := RequestMetaFromContext(ctx)

	result, err := h.service.Report(ctx, slop.Submission{
		URLs:      req.Body.URLs,
		Reporter:  reporter,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		return nil, h.translate(ctx, err, "failed to store report")
	}

	resp := &ReportResponse{}
	resp.Body.DomainsCreated = result.DomainsCreated
	resp.Body.PathsCreated = result.PathsCreated
	resp.Body.ReportsCreated = result.ReportsCreated
	resp.Body.ReportsUpdated = result.ReportsUpdated

	return resp, nil
}

func (h *SlopHandler) Top(ctx context.Context, req *TopRequest) (*TopResponse, error) {
	offenders, err := h.service.TopOffenders(ctx, req.Limit)
	if err != nil {
		h.logger.Error("failed to rank offenders", zap.Int("limit", req.Limit), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to rank offenders")
	}

	resp := &TopResponse{}
	resp.Body.Offenders = make([]OffenderView, 0, len(offenders))

	for _, o := range offenders {
		resp.Body.Offenders = append(resp.Body.Offenders, OffenderView{
			DomainID:      o.DomainID,
			Name:          o.Name,
			ReportedPaths: o.ReportedPaths,
		})
	}

	return resp, nil
}

// reporter returns the verified user behind the request, or nil for anonymous requests.
func (h *SlopHandler) reporter(ctx context.Context) (*uuid.UUID, error) {
	userID, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, nil //nolint:nilnil // anonymous report
	}

	user, err := h.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, huma.Error401Unauthorized("unknown user")
		}

		h.logger.Error("failed to load reporter", zap.String("user_id", userID.String()), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to load user")
	}

	if !user.EmailVerified {
		return nil, huma.Error403Forbidden("email not verified")
	}

	return &user.ID, nil
}

func (h *SlopHandler) translate(ctx context.Context, err error, msg string) error {
	requestID := zap.String("request_id", RequestMetaFromContext(ctx).RequestID)

	switch {
	case errors.Is(err, slop.ErrInvalidURL):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, slop.ErrStorageConflict):
		h.logger.Warn("merge gave up after conflicts", requestID, zap.Error(err))

		return huma.Error503ServiceUnavailable("too many concurrent reports, retry later")
	default:
		h.logger.Error(msg, requestID, zap.Error(err))

		return huma.Error500InternalServerError(msg)
	}
}
