// Package auth resolves the reporting user from HS256 bearer tokens issued by an
// external identity provider that shares the configured token secret.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HS256 bearer tokens whose subject is a user id.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier for tokens signed with secret. An empty issuer
// accepts tokens from any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the user id in its subject.
func (v *Verifier) Verify(tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return id, nil
}

type identityKey struct{}

// ContextWithUser stores the authenticated user id in ctx.
func ContextWithUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(identityKey{}).(uuid.UUID)

	return id, ok
}
