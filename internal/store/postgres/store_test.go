package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/common"
	"veritas/internal/users"
)

var userColumns = []string{"id", "email", "name", "credential_secret", "plan", "daily_usage", "last_usage_date", "version"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func userRow(usage int, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).
		AddRow("u1", "ann@example.com", "Ann", []byte("hash"), "free", usage, "2026-08-28", version)
}

func TestFindByEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ann@example.com").
		WillReturnRows(userRow(2, 1))

	rec, err := s.FindByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID)
	assert.Equal(t, users.PlanFree, rec.Plan)
	assert.Equal(t, 2, rec.DailyUsage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindMalformedPlan(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(userColumns).
		AddRow("u1", "ann@example.com", "Ann", []byte("hash"), "platinum", 0, "2026-08-28", 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(rows)

	_, err := s.FindByID(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrMalformedRecord)
}

func TestInsertDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := s.Insert(context.Background(), &users.UserRecord{
		ID: "u2", Email: "ann@example.com", Plan: users.PlanFree, Version: 1,
	})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestUpdateConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := &users.UserRecord{ID: "u1", Plan: users.PlanFree, Version: 1}
	err := s.Update(context.Background(), rec)
	assert.ErrorIs(t, err, common.ErrConflict)
	// Version is only bumped on success.
	assert.Equal(t, int64(1), rec.Version)
}

func TestUpdateSuccessBumpsVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &users.UserRecord{ID: "u1", Plan: users.PlanFree, Version: 3}
	require.NoError(t, s.Update(context.Background(), rec))
	assert.Equal(t, int64(4), rec.Version)
}

func TestMutateRetriesOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	// First round: read version 1, lose the race.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Second round: fresh read sees the winner's state, write succeeds.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow(1, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.Mutate(context.Background(), "u1", func(r *users.UserRecord) error {
		r.RecordUsage("2026-08-28")
		return nil
	})
	require.NoError(t, err)
	// The retried increment is based on the fresh read, not the stale one.
	assert.Equal(t, 2, rec.DailyUsage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateFnErrorAborts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow(0, 1))

	_, err := s.Mutate(context.Background(), "u1", func(r *users.UserRecord) error {
		return common.ErrQuotaExceeded
	})
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
