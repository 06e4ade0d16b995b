package slop

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists domains, paths and reports.
type Repository interface {
	// Merge reconciles a batch against stored records in one atomic unit.
	// Missing domains and paths are created. When reporter is non-nil every path in the
	// batch gets its (reporter, path) report created or its timestamp moved to at.
	Merge(ctx context.Context, batch Batch, reporter *uuid.UUID, at time.Time) (MergeResult, error)

	// SelectKnown returns the stored domains among names with all their paths.
	// Unknown names are simply absent from the result.
	SelectKnown(ctx context.Context, names []string) ([]Domain, error)

	// TopOffenders ranks domains by distinct reported paths, most first, ties by domain id.
	// A limit <= 0 returns every reported domain.
	TopOffenders(ctx context.Context, limit int) ([]Offender, error)
}

// MergeObserver is notified after every successful merge.
type MergeObserver interface {
	ObserveMerge(result MergeResult)
}
