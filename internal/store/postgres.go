package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/slop-farmer/internal/accounts"
	"github.com/serroba/slop-farmer/internal/slop"
	"go.uber.org/zap"
)

// PostgreSQL error codes that mean a concurrent writer won a race.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const usersEmailConstraint = "uq_users_email"

// PostgresStore is a PostgreSQL implementation of slop.Repository and accounts.Repository.
type PostgresStore struct {
	pool         *pgxpool.Pool
	logger       *zap.Logger
	maxAttempts  uint
	retryBackoff time.Duration
}

// NewPostgresStore creates a new PostgreSQL-backed store. Merges that collide with
// concurrent writers are retried up to maxAttempts times.
func NewPostgresStore(pool *pgxpool.Pool, maxAttempts uint, logger *zap.Logger) *PostgresStore {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	return &PostgresStore{
		pool:         pool,
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryBackoff: 20 * time.Millisecond,
	}
}

func (p *PostgresStore) Merge(
	ctx context.Context, batch slop.Batch, reporter *uuid.UUID, at time.Time,
) (slop.MergeResult, error) {
	var (
		result  slop.MergeResult
		lastErr error
	)

	err := retry.Retry(
		func(attempt uint) error {
			result, lastErr = p.mergeOnce(ctx, batch, reporter, at)
			if lastErr != nil && isConflict(lastErr) {
				p.logger.Debug("merge conflicted with concurrent writer",
					zap.Uint("attempt", attempt),
					zap.Error(lastErr),
				)
			}

			return lastErr
		},
		func(attempt uint) bool {
			return attempt == 0 || (isConflict(lastErr) && ctx.Err() == nil)
		},
		strategy.Limit(p.maxAttempts),
		waitUnlessDone(ctx, backoff.Linear(p.retryBackoff)),
	)
	if err != nil {
		if isConflict(err) {
			return slop.MergeResult{}, fmt.Errorf("%w: %w", slop.ErrStorageConflict, err)
		}

		return slop.MergeResult{}, err
	}

	return result, nil
}

// waitUnlessDone sleeps the backoff before each retry and stops retrying as
// soon as ctx is done.
func waitUnlessDone(ctx context.Context, algorithm backoff.Algorithm) strategy.Strategy {
	return func(attempt uint) bool {
		if attempt == 0 {
			return true
		}

		timer := time.NewTimer(algorithm(attempt))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}

func (p *PostgresStore) mergeOnce(
	ctx context.Context, batch slop.Batch, reporter *uuid.UUID, at time.Time,
) (slop.MergeResult, error) {
	var result slop.MergeResult

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return result, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	names := batch.Domains()

	// Rows are inserted in sorted order so overlapping merges lock them in the same order.
	rows, err := tx.Query(ctx, `
		INSERT INTO domains (name)
		SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, names)
	if err != nil {
		return result, fmt.Errorf("insert domains: %w", err)
	}

	created, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return result, fmt.Errorf("insert domains: %w", err)
	}

	result.DomainsCreated = len(created)

	domainIDs, err := p.domainIDs(ctx, tx, names)
	if err != nil {
		return result, err
	}

	pathDomains := make([]int64, 0, batch.PathCount())
	pathValues := make([]string, 0, batch.PathCount())

	for _, name := range names {
		for _, value := range batch[name] {
			pathDomains = append(pathDomains, domainIDs[name])
			pathValues = append(pathValues, value)
		}
	}

	if len(pathValues) > 0 {
		tag, err := tx.Exec(ctx, `
			INSERT INTO paths (domain_id, value)
			SELECT * FROM unnest($1::bigint[], $2::text[])
			ON CONFLICT (domain_id, value) DO NOTHING
		`, pathDomains, pathValues)
		if err != nil {
			return result, fmt.Errorf("insert paths: %w", err)
		}

		result.PathsCreated = int(tag.RowsAffected())

		if reporter != nil {
			if err := p.upsertReports(ctx, tx, &result, pathDomains, pathValues, *reporter, at); err != nil {
				return result, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit merge: %w", err)
	}

	return result, nil
}

func (p *PostgresStore) domainIDs(ctx context.Context, tx pgx.Tx, names []string) (map[string]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id, name FROM domains WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("select domain ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(names))

	for rows.Next() {
		var (
			id   int64
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan domain id: %w", err)
		}

		ids[name] = id
	}

	return ids, rows.Err()
}

func (p *PostgresStore) upsertReports(
	ctx context.Context,
	tx pgx.Tx,
	result *slop.MergeResult,
	pathDomains []int64,
	pathValues []string,
	reporter uuid.UUID,
	at time.Time,
) error {
	// xmax is zero only for freshly inserted tuples.
	rows, err := tx.Query(ctx, `
		INSERT INTO reports (user_id, path_id, reported_at)
		SELECT $3::uuid, p.id, $4::timestamptz
		FROM paths p
		JOIN unnest($1::bigint[], $2::text[]) AS r(domain_id, value)
		  ON p.domain_id = r.domain_id AND p.value = r.value
		ORDER BY p.id
		ON CONFLICT (user_id, path_id)
		DO UPDATE SET reported_at = GREATEST(reports.reported_at, EXCLUDED.reported_at)
		RETURNING (xmax = 0)
	`, pathDomains, pathValues, reporter, at)
	if err != nil {
		return fmt.Errorf("upsert reports: %w", err)
	}

	inserted, err := pgx.CollectRows(rows, pgx.RowTo[bool])
	if err != nil {
		return fmt.Errorf("upsert reports: %w", err)
	}

	for _, isNew := range inserted {
		if isNew {
			result.ReportsCreated++
		} else {
			result.ReportsUpdated++
		}
	}

	return nil
}

func (p *PostgresStore) SelectKnown(ctx context.Context, names []string) ([]slop.Domain, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT d.id, d.name, p.id, p.value
		FROM domains d
		LEFT JOIN paths p ON p.domain_id = d.id
		WHERE d.name = ANY($1)
		ORDER BY d.id, p.id
	`, names)
	if err != nil {
		return nil, fmt.Errorf("select known domains: %w", err)
	}
	defer rows.Close()

	domains := make([]slop.Domain, 0, len(names))

	for rows.Next() {
		var (
			domainID  int64
			name      string
			pathID    *int64
			pathValue *string
		)

		if err := rows.Scan(&domainID, &name, &pathID, &pathValue); err != nil {
			return nil, fmt.Errorf("scan known domain: %w", err)
		}

		if len(domains) == 0 || domains[len(domains)-1].ID != domainID {
			domains = append(domains, slop.Domain{ID: domainID, Name: name, Paths: []slop.Path{}})
		}

		if pathID != nil {
			last := &domains[len(domains)-1]
			last.Paths = append(last.Paths, slop.Path{ID: *pathID, DomainID: domainID, Value: *pathValue})
		}
	}

	return domains, rows.Err()
}

func (p *PostgresStore) TopOffenders(ctx context.Context, limit int) ([]slop.Offender, error) {
	var limitArg *int64

	if limit > 0 {
		l := int64(limit)
		limitArg = &l
	}

	rows, err := p.pool.Query(ctx, `
		SELECT d.id, d.name, COUNT(DISTINCT r.path_id) AS reported
		FROM domains d
		JOIN paths p ON p.domain_id = d.id
		JOIN reports r ON r.path_id = p.id
		GROUP BY d.id, d.name
		ORDER BY reported DESC, d.id ASC
		LIMIT $1
	`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("select top offenders: %w", err)
	}

	offenders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (slop.Offender, error) {
		var o slop.Offender
		err := row.Scan(&o.DomainID, &o.Name, &o.ReportedPaths)

		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan top offenders: %w", err)
	}

	return offenders, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, user *accounts.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified, verification_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		nullableString(user.VerificationToken),
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == usersEmailConstraint {
			return accounts.ErrEmailTaken
		}

		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

const userColumns = `id, email, password_hash, email_verified, verification_token, created_at`

func (p *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id),
		accounts.ErrNotFound)
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email),
		accounts.ErrNotFound)
}

func (p *PostgresStore) VerifyEmail(ctx context.Context, token string) (*accounts.User, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE users
		SET email_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1 AND NOT email_verified
		RETURNING `+userColumns, token)

	return p.scanUser(row, accounts.ErrInvalidToken)
}

func (p *PostgresStore) scanUser(row pgx.Row, notFound error) (*accounts.User, error) {
	var (
		user  accounts.User
		token *string
	)

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.EmailVerified, &token, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}

		return nil, err
	}

	if token != nil {
		user.VerificationToken = *token
	}

	return &user, nil
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return true
	default:
		return false
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// Compile-time checks.
var (
	_ slop.Repository     = (*PostgresStore)(nil)
	_ accounts.Repository = (*PostgresStore)(nil)
)
