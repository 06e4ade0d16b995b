package slop

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/slop-farmer/internal/events"
	"github.com/serroba/slop-farmer/internal/messaging"
	"go.uber.org/zap"
)

// Submission is a batch of raw URLs reported by a caller.
// Reporter is nil for anonymous submissions.
type Submission struct {
	URLs      []string
	Reporter  *uuid.UUID
	ClientIP  string
	UserAgent string
}

// Service runs URL submissions and queries against a Repository.
type Service struct {
	repo          Repository
	observer      MergeObserver
	publishReport messaging.Publish[events.SlopReported]
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a new slop service.
func NewService(
	repo Repository,
	observer MergeObserver,
	publishReport messaging.Publish[events.SlopReported],
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:          repo,
		observer:      observer,
		publishReport: publishReport,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock replaces the time source used to stamp reports.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now

	return s
}

// Report normalizes and merges a submission. An invalid URL rejects the whole batch
// before anything is written.
func (s *Service) Report(ctx context.Context, sub Submission) (MergeResult, error) {
	batch, err := Normalize(sub.URLs)
	if err != nil {
		return MergeResult{}, err
	}

	if len(batch) == 0 {
		return MergeResult{}, nil
	}

	at := s.now().UTC()

	result, err := s.repo.Merge(ctx, batch, sub.Reporter, at)
	if err != nil {
		return MergeResult{}, err
	}

	if s.observer != nil {
		s.observer.ObserveMerge(result)
	}

	event := &events.SlopReported{
		Domains:        batch.Domains(),
		Paths:          batch.PathCount(),
		DomainsCreated: result.DomainsCreated,
		PathsCreated:   result.PathsCreated,
		ReportsCreated: result.ReportsCreated,
		ReportsUpdated: result.ReportsUpdated,
		ReportedAt:     at,
		ClientIP:       sub.ClientIP,
		UserAgent:      sub.UserAgent,
	}
	if sub.Reporter != nil {
		event.Reporter = sub.Reporter.String()
	}

	if err := s.publishReport(ctx, event); err != nil {
		s.logger.Error("failed to publish report event",
			zap.Strings("domains", event.Domains),
			zap.Error(err),
		)
	}

	return result, nil
}

// Check returns the already known domains among the submitted URLs.
func (s *Service) Check(ctx context.Context, urls []string) ([]Domain, error) {
	batch, err := Normalize(urls)
	if err != nil {
		return nil, err
	}

	if len(batch) == 0 {
		return []Domain{}, nil
	}

	return s.repo.SelectKnown(ctx, batch.Domains())
}

// TopOffenders returns the most reported domains.
func (s *Service) TopOffenders(ctx context.Context, limit int) ([]Offender, error) {
	return s.repo.TopOffenders(ctx, limit)
}
