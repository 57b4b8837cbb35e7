// Package quota computes per-user storage usage and admits or rejects
// writes against the user's limit. Usage is always recomputed from the
// current non-trashed file sizes rather than cached, so it cannot drift
// after partial failures elsewhere.
package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Accountant answers quota questions from the database.
type Accountant struct {
	db *sql.DB
}

// NewAccountant creates a new quota accountant.
func NewAccountant(db *sql.DB) *Accountant {
	return &Accountant{db: db}
}

// GetUsage returns a user's current usage and limit. Trashed files do
// not count against usage; they stop counting the moment they are
// trashed and resume if restored.
func (a *Accountant) GetUsage(ctx context.Context, userID string) (*model.Usage, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_usage", time.Since(start)) }()

	var u model.Usage
	err := a.db.QueryRowContext(ctx,
		`SELECT storage_limit_mb FROM users WHERE id = $1`, userID).Scan(&u.LimitMB)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	err = a.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_mb), 0) FROM files WHERE owner_id = $1 AND trashed = FALSE`,
		userID).Scan(&u.UsedMB)
	if err != nil {
		return nil, fmt.Errorf("sum usage: %w", err)
	}

	return &u, nil
}

// CheckAvailable reports whether userID can store incomingSizeMB more
// without exceeding their limit. This is an advisory check; the
// authoritative admission happens inside the file-insert transaction,
// which holds the owner's row lock.
func (a *Accountant) CheckAvailable(ctx context.Context, userID string, incomingSizeMB float64) (bool, error) {
	u, err := a.GetUsage(ctx, userID)
	if err != nil {
		return false, err
	}
	ok := u.UsedMB+incomingSizeMB <= u.LimitMB
	metrics.RecordQuotaCheck(ok)
	return ok, nil
}

// SetLimit changes a user's storage limit. Lowering the limit below
// current usage does not evict files; the over-quota state persists and
// simply blocks further writes.
func (a *Accountant) SetLimit(ctx context.Context, userID string, newLimitMB float64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_limit", time.Since(start)) }()

	if newLimitMB < 0 {
		return fmt.Errorf("storage limit must not be negative, got %v", newLimitMB)
	}
	res, err := a.db.ExecContext(ctx,
		`UPDATE users SET storage_limit_mb = $1 WHERE id = $2`, newLimitMB, userID)
	if err != nil {
		return fmt.Errorf("set limit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}

	logging.Info("storage limit updated",
		zap.String("user", userID),
		zap.Float64("limit_mb", newLimitMB))
	return nil
}
