package events

import (
	"context"

	"github.com/serroba/slop-farmer/internal/messaging"
	"go.uber.org/zap"
)

// LogSink handles events by logging them. It stands in for the mailer and
// any downstream consumer until those exist.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) HandleSlopReported(ctx context.Context, event *SlopReported) error {
	s.logger.Info("slop reported",
		zap.String("correlationId", messaging.CorrelationID(ctx)),
		zap.Strings("domains", event.Domains),
		zap.Int("paths", event.Paths),
		zap.Int("domainsCreated", event.DomainsCreated),
		zap.Int("pathsCreated", event.PathsCreated),
		zap.Int("reportsCreated", event.ReportsCreated),
		zap.Int("reportsUpdated", event.ReportsUpdated),
		zap.String("reporter", event.Reporter),
		zap.Time("reportedAt", event.ReportedAt),
	)

	return nil
}

func (s *LogSink) HandleUserRegistered(ctx context.Context, event *UserRegistered) error {
	s.logger.Info("verification email queued",
		zap.String("correlationId", messaging.CorrelationID(ctx)),
		zap.String("userId", event.UserID),
		zap.String("email", event.Email),
		zap.Time("registeredAt", event.RegisteredAt),
	)

	return nil
}

func (s *LogSink) HandleUserVerified(ctx context.Context, event *UserVerified) error {
	s.logger.Info("user verified",
		zap.String("correlationId", messaging.CorrelationID(ctx)),
		zap.String("userId", event.UserID),
		zap.String("email", event.Email),
		zap.Time("verifiedAt", event.VerifiedAt),
	)

	return nil
}
