// internal/repository/postgres/history_pg.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"

	"github.com/jmoiron/sqlx"
)

// HistoryRepository implements repository.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	// Methods receive a DBExecutor directly, so no connection is stored here.
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) repository.HistoryRepository {
	return &HistoryRepository{}
}

// AppendSnapshot inserts a new past_balance row using the provided DBExecutor.
// History rows are insert-only, so concurrent appends never block each other.
func (r *HistoryRepository) AppendSnapshot(ctx context.Context, q repository.DBExecutor, record *domain.PastBalanceRecord) error {
	query := `INSERT INTO past_balance (user_id, balances, changed)
              VALUES ($1, $2, $3) RETURNING id`
	err := q.QueryRowContext(ctx, query, record.UserID, record.Balances, record.Changed).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to append snapshot for user %d: %w", record.UserID, translateErr(err))
	}
	return nil
}

// GetByUser retrieves a paginated window of snapshots for a user.
// It performs two queries: one for the data and one for the total count.
func (r *HistoryRepository) GetByUser(ctx context.Context, q repository.DBExecutor, userID int64, filter repository.HistoryFilter) ([]domain.PastBalanceRecord, int64, error) {
	where, args := buildHistoryWhere(userID, filter)

	records := []domain.PastBalanceRecord{}
	query := fmt.Sprintf(`
		SELECT id, user_id, balances, changed
		FROM past_balance
		%s
		ORDER BY id ASC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	err := q.SelectContext(ctx, &records, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch history for user %d: %w", userID, translateErr(err))
	}

	var totalCount int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM past_balance %s`, where)
	err = q.GetContext(ctx, &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history for user %d: %w", userID, translateErr(err))
	}

	return records, totalCount, nil
}

// buildHistoryWhere assembles the WHERE clause for the optional time window.
func buildHistoryWhere(userID int64, filter repository.HistoryFilter) (string, []interface{}) {
	clauses := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("changed >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		clauses = append(clauses, fmt.Sprintf("changed <= $%d", len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}
