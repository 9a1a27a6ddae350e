// Package postgres implements the remote, authoritative user record store
// on PostgreSQL. Lost updates are prevented with version-conditional
// writes retried on conflict, so it is safe for several sessions of the
// same account to race each other.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"veritas/internal/common"
	"veritas/internal/store/postgres/migrations"
	"veritas/internal/users"
)

const uniqueViolation = "23505"

// mutateMaxRetries bounds the compare-and-swap retry loop in Mutate.
const mutateMaxRetries = 5

// Store is the Postgres-backed UserRecordStore.
type Store struct {
	db *sql.DB
}

// Open connects to the DSN, runs pending migrations, and returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return New(db), nil
}

// New returns a Store bound to an already opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*users.UserRecord, error) {
	query := `SELECT id, email, name, credential_secret, plan, daily_usage, last_usage_date, version
		 FROM users WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*users.UserRecord, error) {
	query := `SELECT id, email, name, credential_secret, plan, daily_usage, last_usage_date, version
		 FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) scanOne(row *sql.Row) (*users.UserRecord, error) {
	rec := &users.UserRecord{}
	var plan string

	err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &rec.CredentialSecret,
		&plan, &rec.DailyUsage, &rec.LastUsageDate, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	rec.Plan, err = users.ParsePlan(plan)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Insert(ctx context.Context, rec *users.UserRecord) error {
	query := `INSERT INTO users (id, email, name, credential_secret, plan, daily_usage, last_usage_date, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.Email, rec.Name,
		rec.CredentialSecret, string(rec.Plan), rec.DailyUsage, rec.LastUsageDate, rec.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Update persists rec only if the stored version still matches rec.Version.
// On success both the stored and the in-memory version are incremented.
func (s *Store) Update(ctx context.Context, rec *users.UserRecord) error {
	query := `UPDATE users
		 SET email = $1, name = $2, credential_secret = $3, plan = $4,
		     daily_usage = $5, last_usage_date = $6, version = version + 1
		 WHERE id = $7 AND version = $8`

	res, err := s.db.ExecContext(ctx, query, rec.Email, rec.Name, rec.CredentialSecret,
		string(rec.Plan), rec.DailyUsage, rec.LastUsageDate, rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if ra != 1 {
		return common.ErrConflict
	}

	rec.Version++
	return nil
}

// Mutate implements the atomic read-modify-write: read the current record,
// apply fn, and write back conditionally on the version read. A concurrent
// writer causes ErrConflict, which is retried with a fresh read.
func (s *Store) Mutate(ctx context.Context, id string, fn func(rec *users.UserRecord) error) (*users.UserRecord, error) {
	var out *users.UserRecord

	b := retry.WithMaxRetries(mutateMaxRetries, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		rec, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		if err := s.Update(ctx, rec); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
