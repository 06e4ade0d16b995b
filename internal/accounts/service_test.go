package accounts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/slop-farmer/internal/accounts"
	"github.com/serroba/slop-farmer/internal/events"
	"github.com/serroba/slop-farmer/internal/messaging"
	"github.com/serroba/slop-farmer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	registered []*events.UserRegistered
	verified   []*events.UserVerified
}

func newService(t *testing.T, publishErr error) (*accounts.Service, *recorded) {
	t.Helper()

	rec := &recorded{}
	tokens := []string{"token-1", "token-2", "token-3"}
	next := 0

	generator := func() string {
		token := tokens[next%len(tokens)]
		next++

		return token
	}

	var publishRegister messaging.Publish[events.UserRegistered] = func(_ context.Context, e *events.UserRegistered) error {
		rec.registered = append(rec.registered, e)

		return publishErr
	}

	var publishVerified messaging.Publish[events.UserVerified] = func(_ context.Context, e *events.UserVerified) error {
		rec.verified = append(rec.verified, e)

		return publishErr
	}

	return accounts.NewService(store.NewMemoryStore(), generator, publishRegister, publishVerified, zap.NewNop()), rec
}

func TestService_Register(t *testing.T) {
	t.Run("creates an unverified user and announces it", func(t *testing.T) {
		svc, rec := newService(t, nil)

		user, err := svc.Register(context.Background(), "  New.User@Example.COM ", "hash")

		require.NoError(t, err)
		assert.Equal(t, "new.user@example.com", user.Email)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.False(t, user.EmailVerified)
		assert.Equal(t, "token-1", user.VerificationToken)

		require.Len(t, rec.registered, 1)
		assert.Equal(t, user.ID.String(), rec.registered[0].UserID)
		assert.Equal(t, "token-1", rec.registered[0].VerificationToken)
	})

	t.Run("rejects duplicate emails case-insensitively", func(t *testing.T) {
		svc, _ := newService(t, nil)

		_, err := svc.Register(context.Background(), "dup@example.com", "hash")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), "DUP@example.com", "hash")

		assert.ErrorIs(t, err, accounts.ErrEmailTaken)
	})

	t.Run("rejects invalid emails", func(t *testing.T) {
		svc, rec := newService(t, nil)

		for _, email := range []string{"", "not-an-email", "Name <name@example.com>"} {
			_, err := svc.Register(context.Background(), email, "hash")

			assert.ErrorIs(t, err, accounts.ErrInvalidEmail, email)
		}

		assert.Empty(t, rec.registered)
	})

	t.Run("publish failure does not fail registration", func(t *testing.T) {
		svc, _ := newService(t, errors.New("broker down"))

		user, err := svc.Register(context.Background(), "a@example.com", "hash")

		require.NoError(t, err)
		assert.NotNil(t, user)
	})
}

func TestService_Verify(t *testing.T) {
	t.Run("verifies once", func(t *testing.T) {
		svc, rec := newService(t, nil)

		user, err := svc.Register(context.Background(), "a@example.com", "hash")
		require.NoError(t, err)

		verified, err := svc.Verify(context.Background(), user.VerificationToken)

		require.NoError(t, err)
		assert.True(t, verified.EmailVerified)
		assert.Empty(t, verified.VerificationToken)
		require.Len(t, rec.verified, 1)
		assert.Equal(t, user.ID.String(), rec.verified[0].UserID)

		_, err = svc.Verify(context.Background(), user.VerificationToken)
		assert.ErrorIs(t, err, accounts.ErrInvalidToken)
		assert.Len(t, rec.verified, 1)
	})

	t.Run("rejects unknown and blank tokens", func(t *testing.T) {
		svc, _ := newService(t, nil)

		_, err := svc.Verify(context.Background(), "nope")
		require.ErrorIs(t, err, accounts.ErrInvalidToken)

		_, err = svc.Verify(context.Background(), "  ")
		assert.ErrorIs(t, err, accounts.ErrInvalidToken)
	})
}

func TestService_Get(t *testing.T) {
	svc, _ := newService(t, nil)

	user, err := svc.Register(context.Background(), "a@example.com", "hash")
	require.NoError(t, err)

	byID, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := svc.GetByEmail(context.Background(), "A@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = svc.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}
