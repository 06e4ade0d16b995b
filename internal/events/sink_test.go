package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/slop-farmer/internal/events"
	"github.com/serroba/slop-farmer/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedSink() (*events.LogSink, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)

	return events.NewLogSink(zap.New(core)), logs
}

func TestLogSink_HandleSlopReported(t *testing.T) {
	sink, logs := newObservedSink()

	ctx := messaging.WithCorrelationID(context.Background(), "req-1")

	err := sink.HandleSlopReported(ctx, &events.SlopReported{
		Domains:        []string{"slop.example.com"},
		Paths:          2,
		ReportsCreated: 2,
		Reporter:       "9b2f7c1e-4a55-4f5e-9d8a-2a4c4b8f7a10",
		ReportedAt:     time.Now(),
	})

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "slop reported", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["reportsCreated"])
	assert.Equal(t, "req-1", entry.ContextMap()["correlationId"])
}

func TestLogSink_HandleUserRegistered(t *testing.T) {
	sink, logs := newObservedSink()

	err := sink.HandleUserRegistered(context.Background(), &events.UserRegistered{
		UserID:            "u1",
		Email:             "new@example.com",
		VerificationToken: "secret-token",
		RegisteredAt:      time.Now(),
	})

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "new@example.com", fields["email"])
	assert.NotContains(t, fields, "verificationToken", "tokens are never logged")
}

func TestLogSink_HandleUserVerified(t *testing.T) {
	sink, logs := newObservedSink()

	err := sink.HandleUserVerified(context.Background(), &events.UserVerified{
		UserID:     "u1",
		Email:      "new@example.com",
		VerifiedAt: time.Now(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("user verified").Len())
}
