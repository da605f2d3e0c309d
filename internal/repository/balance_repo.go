// internal/repository/balance_repo.go
package repository

import (
	"context"

	"balance-ledger/internal/domain"
)

// BalanceRepository defines the interface for current-balance data operations.
type BalanceRepository interface {
	// CreateAccount inserts a new zero-balance row. It fails with
	// util.ErrDuplicateUser if the user already has a row.
	CreateAccount(ctx context.Context, q DBExecutor, balance *domain.CurrentBalance) error
	// EnsureAccount inserts a zero-balance row if none exists yet (lazy
	// account creation). It is a no-op for a known user.
	EnsureAccount(ctx context.Context, q DBExecutor, userID int64) error
	// GetBalances retrieves the currency mapping for a user.
	// It returns util.ErrNotFound when the user has no row.
	GetBalances(ctx context.Context, q DBExecutor, userID int64) (domain.CurrencyMap, error)
	// GetBalancesForUpdate retrieves the currency mapping while holding a
	// row-level lock for the remainder of the transaction. Must be called
	// with a transactional executor.
	GetBalancesForUpdate(ctx context.Context, q DBExecutor, userID int64) (domain.CurrencyMap, error)
	// UpdateBalances replaces the stored mapping for a user.
	UpdateBalances(ctx context.Context, q DBExecutor, userID int64, balances domain.CurrencyMap) error
}
