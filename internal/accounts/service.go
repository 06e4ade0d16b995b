package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/slop-farmer/internal/events"
	"github.com/serroba/slop-farmer/internal/messaging"
	"go.uber.org/zap"
)

// TokenGenerator produces email verification tokens.
type TokenGenerator func() string

// Service manages signup and email verification.
type Service struct {
	repo            Repository
	generateToken   TokenGenerator
	publishRegister messaging.Publish[events.UserRegistered]
	publishVerified messaging.Publish[events.UserVerified]
	logger          *zap.Logger
}

// NewService creates a new accounts service.
func NewService(
	repo Repository,
	generator TokenGenerator,
	publishRegister messaging.Publish[events.UserRegistered],
	publishVerified messaging.Publish[events.UserVerified],
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:            repo,
		generateToken:   generator,
		publishRegister: publishRegister,
		publishVerified: publishVerified,
		logger:          logger,
	}
}

// Register creates an unverified user and announces it so the mailer can send the token.
func (s *Service) Register(ctx context.Context, email, passwordHash string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: s.generateToken(),
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	event := &events.UserRegistered{
		UserID:            user.ID.String(),
		Email:             user.Email,
		VerificationToken: user.VerificationToken,
		RegisteredAt:      user.CreatedAt,
	}

	if err := s.publishRegister(ctx, event); err != nil {
		s.logger.Error("failed to publish user registered event",
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}

	return user, nil
}

// Verify consumes a verification token. A user is verified at most once.
func (s *Service) Verify(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.VerifyEmail(ctx, token)
	if err != nil {
		return nil, err
	}

	event := &events.UserVerified{
		UserID:     user.ID.String(),
		Email:      user.Email,
		VerifiedAt: time.Now().UTC(),
	}

	if err := s.publishVerified(ctx, event); err != nil {
		s.logger.Error("failed to publish user verified event",
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}

	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetByEmail returns a user by email, matched case-insensitively.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	return s.repo.GetUserByEmail(ctx, email)
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	return strings.ToLower(addr.Address), nil
}
