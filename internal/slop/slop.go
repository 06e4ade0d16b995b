package slop

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidURL is returned when a submitted URL has no resolvable domain.
	ErrInvalidURL = errors.New("invalid url")

	// ErrStorageConflict is returned when a merge kept colliding with concurrent writers
	// after all retries were spent.
	ErrStorageConflict = errors.New("storage conflict")
)

// Path is the path+query part of a reported URL, scoped to a domain.
type Path struct {
	ID       int64
	DomainID int64
	Value    string
}

// Domain is a reported host together with its known paths.
type Domain struct {
	ID    int64
	Name  string
	Paths []Path
}

// Report records that a user flagged a path. At most one exists per (user, path).
type Report struct {
	UserID     uuid.UUID
	PathID     int64
	ReportedAt time.Time
}

// Offender is a domain ranked by how many of its paths were reported.
type Offender struct {
	DomainID      int64
	Name          string
	ReportedPaths int64
}

// MergeResult summarizes what a merge changed.
type MergeResult struct {
	DomainsCreated int
	PathsCreated   int
	ReportsCreated int
	ReportsUpdated int
}
