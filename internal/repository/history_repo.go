// internal/repository/history_repo.go
package repository

import (
	"context"
	"time"

	"balance-ledger/internal/domain"
)

// HistoryFilter bounds a history query. Since/Until are inclusive bounds on
// the snapshot time; nil means unbounded. Limit/Offset make the sequence
// restartable from any point.
type HistoryFilter struct {
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// HistoryRepository defines the interface for past-balance data operations.
// The table is append-only; there are no update or delete operations.
type HistoryRepository interface {
	// AppendSnapshot inserts a new immutable snapshot and fills in the
	// assigned id.
	AppendSnapshot(ctx context.Context, q DBExecutor, record *domain.PastBalanceRecord) error
	// GetByUser retrieves snapshots for a user in ascending id order,
	// bounded by the filter, plus the total count matching the time window.
	GetByUser(ctx context.Context, q DBExecutor, userID int64, filter HistoryFilter) ([]domain.PastBalanceRecord, int64, error)
}
