package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veritas/internal/common"
	"veritas/internal/dbx"
)

// Slot persists the signed session token in the local database's
// single-record session table.
type Slot struct {
	db dbx.DBTX
}

func NewSlot(db dbx.DBTX) *Slot {
	return &Slot{db: db}
}

// Save stores the token, replacing any previous one.
func (s *Slot) Save(ctx context.Context, token string) error {
	query := `INSERT INTO session (id, token) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token`

	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the stored token, or ErrNotFound when the slot is empty.
func (s *Slot) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM session WHERE id = 1`).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return token, nil
}

// Clear empties the slot. Clearing an empty slot is a no-op.
func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
