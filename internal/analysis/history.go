package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"veritas/internal/common"
	"veritas/internal/dbx"
)

// HistoryItem is one archived analysis, kept locally per device.
type HistoryItem struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	// Preview is the first part of the analyzed text.
	Preview string
	Result  Result
}

// HistoryRepository stores past analyses.
type HistoryRepository interface {
	Append(ctx context.Context, item *HistoryItem) error
	ListByUser(ctx context.Context, userID string, limit int) ([]HistoryItem, error)
}

// SQLiteHistoryRepository implements HistoryRepository over the local
// database's history table.
type SQLiteHistoryRepository struct {
	db dbx.DBTX
}

func NewSQLiteHistoryRepository(db dbx.DBTX) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

func (r *SQLiteHistoryRepository) Append(ctx context.Context, item *HistoryItem) error {
	factors, err := json.Marshal(item.Result.KeyFactors)
	if err != nil {
		return fmt.Errorf("encoding factors: %w", err)
	}

	query := `INSERT INTO history (id, user_id, created_at, preview, ai_probability, verdict, summary, factors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, item.ID, item.UserID, item.CreatedAt.Unix(),
		item.Preview, item.Result.AIProbability, string(item.Result.Verdict),
		item.Result.Summary, string(factors))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SQLiteHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]HistoryItem, error) {
	query := `SELECT id, user_id, created_at, preview, ai_probability, verdict, summary, factors
		 FROM history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []HistoryItem
	for rows.Next() {
		var item HistoryItem
		var createdAt int64
		var verdict, factors string

		if err := rows.Scan(&item.ID, &item.UserID, &createdAt, &item.Preview,
			&item.Result.AIProbability, &verdict, &item.Result.Summary, &factors); err != nil {
			return nil, err
		}
		item.CreatedAt = time.Unix(createdAt, 0)
		item.Result.Verdict = Verdict(verdict)
		if err := json.Unmarshal([]byte(factors), &item.Result.KeyFactors); err != nil {
			return nil, fmt.Errorf("%w: bad factors payload: %v", common.ErrMalformedRecord, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
