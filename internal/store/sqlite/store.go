// Package sqlite implements the local, on-device user record store used
// standalone or as a fallback when no remote store is configured. It is
// single-process by construction, so the read-modify-write sequence is
// serialized with a mutex instead of conditional updates.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"veritas/internal/common"
	"veritas/internal/store/sqlite/migrations"
	"veritas/internal/users"
)

// Store is the SQLite-backed UserRecordStore.
type Store struct {
	db *sql.DB

	// mu serializes every read-modify-write sequence. Plain reads do not
	// need it; Mutate does, because two local goroutines (e.g. the
	// rollover-on-read path racing an increment) share this process.
	mu sync.Mutex
}

// Open opens (creating if necessary) the local database at dsn and applies
// pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded goose migrations for the local schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

// New returns a Store bound to an already opened local database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*users.UserRecord, error) {
	query := `SELECT id, email, name, credential_secret, plan, daily_usage, last_usage_date, version
		 FROM users WHERE email = ?`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*users.UserRecord, error) {
	query := `SELECT id, email, name, credential_secret, plan, daily_usage, last_usage_date, version
		 FROM users WHERE id = ?`
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.Email, rec.Name,
		rec.CredentialSecret, string(rec.Plan), rec.DailyUsage, rec.LastUsageDate, rec.Version)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Update persists rec only if the stored version still matches rec.Version,
// mirroring the remote backend's conditional-write contract.
func (s *Store) Update(ctx context.Context, rec *users.UserRecord) error {
	query := `UPDATE users
		 SET email = ?, name = ?, credential_secret = ?, plan = ?,
		     daily_usage = ?, last_usage_date = ?, version = version + 1
		 WHERE id = ? AND version = ?`

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

// Mutate holds the store lock across read, fn, and write, so concurrent
// mutations of the same user never observe each other's intermediate state.
func (s *Store) Mutate(ctx context.Context, id string, fn func(rec *users.UserRecord) error) (*users.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
