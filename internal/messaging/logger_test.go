package messaging_test

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/serroba/slop-farmer/internal/messaging"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	t.Run("forwards fields and error", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		logger := messaging.NewZapLogger(zap.New(core))

		logger.Error("publish failed", errors.New("boom"), watermill.LogFields{"topic": "slop.reported"})

		entries := logs.All()
		assert.Len(t, entries, 1)
		assert.Equal(t, "publish failed", entries[0].Message)
		assert.Equal(t, "slop.reported", entries[0].ContextMap()["topic"])
		assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	})

	t.Run("with carries fields into later entries", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		logger := messaging.NewZapLogger(zap.New(core)).With(watermill.LogFields{"consumer_group": "audit"})

		logger.Trace("tick", nil)
		logger.Info("started", watermill.LogFields{"n": 2})

		entries := logs.All()
		assert.Len(t, entries, 2)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "audit", entries[1].ContextMap()["consumer_group"])
	})
}
