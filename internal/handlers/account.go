package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/slop-farmer/internal/accounts"
	"go.uber.org/zap"
)

// AccountHandler handles account operations exposed over HTTP.
type AccountHandler struct {
	service *accounts.Service
	logger  *zap.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(service *accounts.Service, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

func (h *AccountHandler) Signup(ctx context.Context, req *SignupRequest) (*SignupResponse, error) {
	user, err := h.service.Register(ctx, req.Body.Email, req.Body.PasswordHash)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidEmail):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		case errors.Is(err, accounts.ErrEmailTaken):
			return nil, huma.Error409Conflict("email already registered")
		default:
			h.logger.Error("failed to register user", zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to register user")
		}
	}

	resp := &SignupResponse{}
	resp.Body.UserID = user.ID.String()

	return resp, nil
}

func (h *AccountHandler) Verify(ctx context.Context, req *VerifyRequest) (*struct{}, error) {
	if _, err := h.service.Verify(ctx, req.Body.Token); err != nil {
		if errors.Is(err, accounts.ErrInvalidToken) {
			return nil, huma.Error404NotFound("verification token not found")
		}

		h.logger.Error("failed to verify email", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to verify email")
	}

	return nil, nil //nolint:nilnil // 204 No Content
}
