package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/slop-farmer/internal/accounts"
	"github.com/serroba/slop-farmer/internal/slop"
)

type reportKey struct {
	userID uuid.UUID
	pathID int64
}

// MemoryStore is an in-memory implementation of slop.Repository and accounts.Repository.
// A single mutex makes every merge atomic.
type MemoryStore struct {
	mu sync.RWMutex

	domains     map[string]*slop.Domain // name -> domain
	domainsByID map[int64]*slop.Domain
	pathDomain  map[int64]int64 // path id -> domain id
	reports     map[reportKey]time.Time
	nextDomain  int64
	nextPath    int64

	users       map[uuid.UUID]*accounts.User
	usersByMail map[string]uuid.UUID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		domains:     make(map[string]*slop.Domain),
		domainsByID: make(map[int64]*slop.Domain),
		pathDomain:  make(map[int64]int64),
		reports:     make(map[reportKey]time.Time),
		users:       make(map[uuid.UUID]*accounts.User),
		usersByMail: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Merge(
	_ context.Context, batch slop.Batch, reporter *uuid.UUID, at time.Time,
) (slop.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result slop.MergeResult

	for _, name := range batch.Domains() {
		domain, ok := m.domains[name]
		if !ok {
			m.nextDomain++
			domain = &slop.Domain{ID: m.nextDomain, Name: name}
			m.domains[name] = domain
			m.domainsByID[domain.ID] = domain
			result.DomainsCreated++
		}

		for _, value := range batch[name] {
			pathID, created := m.ensurePath(domain, value)
			if created {
				result.PathsCreated++
			}

			if reporter == nil {
				continue
			}

			key := reportKey{userID: *reporter, pathID: pathID}
			if prev, exists := m.reports[key]; exists {
				if at.After(prev) {
					m.reports[key] = at
				}

				result.ReportsUpdated++

				continue
			}

			m.reports[key] = at
			result.ReportsCreated++
		}
	}

	return result, nil
}

func (m *MemoryStore) ensurePath(domain *slop.Domain, value string) (int64, bool) {
	for _, p := range domain.Paths {
		if p.Value == value {
			return p.ID, false
		}
	}

	m.nextPath++
	m.pathDomain[m.nextPath] = domain.ID
	domain.Paths = append(domain.Paths, slop.Path{ID: m.nextPath, DomainID: domain.ID, Value: value})

	return m.nextPath, true
}

func (m *MemoryStore) SelectKnown(_ context.Context, names []string) ([]slop.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make([]slop.Domain, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}

		if domain, ok := m.domains[name]; ok {
			found = append(found, copyDomain(domain))
		}
	}

	sortDomains(found)

	return found, nil
}

func (m *MemoryStore) TopOffenders(_ context.Context, limit int) ([]slop.Offender, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reported := make(map[int64]map[int64]struct{}) // domain id -> reported path ids

	for key := range m.reports {
		domainID := m.pathDomain[key.pathID]
		if reported[domainID] == nil {
			reported[domainID] = make(map[int64]struct{})
		}

		reported[domainID][key.pathID] = struct{}{}
	}

	offenders := make([]slop.Offender, 0, len(reported))
	for domainID, paths := range reported {
		offenders = append(offenders, slop.Offender{
			DomainID:      domainID,
			Name:          m.domainsByID[domainID].Name,
			ReportedPaths: int64(len(paths)),
		})
	}

	slices.SortFunc(offenders, func(a, b slop.Offender) int {
		if c := cmp.Compare(b.ReportedPaths, a.ReportedPaths); c != 0 {
			return c
		}

		return cmp.Compare(a.DomainID, b.DomainID)
	})

	if limit > 0 && len(offenders) > limit {
		offenders = offenders[:limit]
	}

	return offenders, nil
}

// ReportedAt returns when user last reported path, if ever.
func (m *MemoryStore) ReportedAt(userID uuid.UUID, pathID int64) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	at, ok := m.reports[reportKey{userID: userID, pathID: pathID}]

	return at, ok
}

// ReportCount returns the number of stored reports.
func (m *MemoryStore) ReportCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.reports)
}

func (m *MemoryStore) CreateUser(_ context.Context, user *accounts.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.usersByMail[user.Email]; taken {
		return accounts.ErrEmailTaken
	}

	stored := *user
	m.users[user.ID] = &stored
	m.usersByMail[user.Email] = user.ID

	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*accounts.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}

	out := *user

	return &out, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*accounts.User, error) {
	m.mu.RLock()
	id, ok := m.usersByMail[email]
	m.mu.RUnlock()

	if !ok {
		return nil, accounts.ErrNotFound
	}

	return m.GetUser(ctx, id)
}

func (m *MemoryStore) VerifyEmail(_ context.Context, token string) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.EmailVerified || user.VerificationToken == "" || user.VerificationToken != token {
			continue
		}

		user.EmailVerified = true
		user.VerificationToken = ""
		out := *user

		return &out, nil
	}

	return nil, accounts.ErrInvalidToken
}

// Shutdown is a no-op for MemoryStore.
func (m *MemoryStore) Shutdown() error {
	return nil
}

func copyDomain(d *slop.Domain) slop.Domain {
	out := slop.Domain{ID: d.ID, Name: d.Name, Paths: make([]slop.Path, len(d.Paths))}
	copy(out.Paths, d.Paths)

	return out
}

// Compile-time checks.
var (
	_ slop.Repository     = (*MemoryStore)(nil)
	_ accounts.Repository = (*MemoryStore)(nil)
)
