// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"

	"github.com/jmoiron/sqlx"
)

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct {
	// Methods receive a DBExecutor directly, so no connection is stored here.
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) repository.BalanceRepository {
	return &BalanceRepository{}
}

// CreateAccount inserts a new current_balance row using the provided DBExecutor.
func (r *BalanceRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, balance *domain.CurrentBalance) error {
	query := `INSERT INTO current_balance (user_id, balances) VALUES ($1, $2)`
	if _, err := q.ExecContext(ctx, query, balance.UserID, balance.Balances); err != nil {
		err = translateErr(err)
		if errors.Is(err, util.ErrDuplicateUser) {
			return fmt.Errorf("user %d: %w", balance.UserID, util.ErrDuplicateUser)
		}
		return fmt.Errorf("failed to create account for user %d: %w", balance.UserID, err)
	}
	return nil
}

// EnsureAccount lazily creates a zero-balance row for the user if none exists.
func (r *BalanceRepository) EnsureAccount(ctx context.Context, q repository.DBExecutor, userID int64) error {
	query := `INSERT INTO current_balance (user_id, balances) VALUES ($1, '{}')
              ON CONFLICT (user_id) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure account for user %d: %w", userID, translateErr(err))
	}
	return nil
}

// GetBalances retrieves the currency mapping for a user using the provided DBExecutor.
func (r *BalanceRepository) GetBalances(ctx context.Context, q repository.DBExecutor, userID int64) (domain.CurrencyMap, error) {
	return r.getBalances(ctx, q, userID,
		`SELECT balances FROM current_balance WHERE user_id = $1`)
}

// GetBalancesForUpdate retrieves the mapping while taking a row-level lock.
// The lock is held until the surrounding transaction commits or rolls back;
// it is the serialization point for all mutations of one user.
func (r *BalanceRepository) GetBalancesForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (domain.CurrencyMap, error) {
	return r.getBalances(ctx, q, userID,
		`SELECT balances FROM current_balance WHERE user_id = $1 FOR UPDATE`)
}

func (r *BalanceRepository) getBalances(ctx context.Context, q repository.DBExecutor, userID int64, query string) (domain.CurrencyMap, error) {
	var balances domain.CurrencyMap
	err := q.GetContext(ctx, &balances, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		err = translateErr(err)
		if errors.Is(err, util.ErrCorruptBalanceData) {
			return nil, fmt.Errorf("user %d: %w", userID, err)
		}
		return nil, fmt.Errorf("failed to get balances for user %d: %w", userID, err)
	}
	if balances == nil {
		balances = domain.NewCurrencyMap()
	}
	return balances, nil
}

// UpdateBalances replaces the stored mapping for a user using the provided DBExecutor.
func (r *BalanceRepository) UpdateBalances(ctx context.Context, q repository.DBExecutor, userID int64, balances domain.CurrencyMap) error {
	query := `UPDATE current_balance SET balances = $1 WHERE user_id = $2`
	result, err := q.ExecContext(ctx, query, balances, userID)
	if err != nil {
		return fmt.Errorf("failed to update balances for user %d: %w", userID, translateErr(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating balances for user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, util.ErrUnknownUser)
	}
	return nil
}
