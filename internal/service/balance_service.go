// internal/service/balance_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balance-ledger/internal/config"
	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/db"
	"balance-ledger/pkg/keylock"

	"github.com/shopspring/decimal"
)

// BalanceService is the balance store: consistent read/write access to user
// balances plus the append-only audit trail of snapshots.
type BalanceService interface {
	// RegisterUser creates an empty-balance account, failing with
	// util.ErrDuplicateUser if the user already exists.
	RegisterUser(ctx context.Context, userID int64) error
	// GetCurrentBalance returns the user's currency mapping, or an empty
	// mapping if the user has no row yet.
	GetCurrentBalance(ctx context.Context, userID int64) (domain.CurrencyMap, error)
	// SetBalance sets one currency's amount, creating the account if needed,
	// and returns the post-mutation mapping.
	SetBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (domain.CurrencyMap, error)
	// AdjustBalance adds delta to one currency's amount (missing reads as
	// zero) and returns the post-mutation mapping.
	AdjustBalance(ctx context.Context, userID int64, currency string, delta decimal.Decimal) (domain.CurrencyMap, error)
	// RecordSnapshot appends an on-demand snapshot of the current mapping.
	RecordSnapshot(ctx context.Context, userID int64) (*domain.PastBalanceRecord, error)
	// GetHistory returns snapshots in ascending chronological order, bounded
	// by the filter, plus the total count within the time window.
	GetHistory(ctx context.Context, userID int64, filter repository.HistoryFilter) ([]domain.PastBalanceRecord, int64, error)
}

// balanceService implements the BalanceService interface.
type balanceService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	balanceRepo     repository.BalanceRepository
	historyRepo     repository.HistoryRepository
	userLocks       *keylock.KeyLock // In-process serialization per user id
	policy          config.Policy
	historyLimit    int               // Page size applied when the caller passes none
	historyMaxLimit int               // Upper bound on any caller-supplied page size
	beginTx         db.BeginTxFunc    // Injected dependency for beginning transactions
	commitTx        db.CommitTxFunc   // Injected dependency for committing transactions
	rollbackTx      db.RollbackTxFunc // Injected dependency for rolling back transactions
}

// NewBalanceService creates a new instance of BalanceService.
func NewBalanceService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	balanceRepo repository.BalanceRepository,
	historyRepo repository.HistoryRepository,
	policy config.Policy,
	historyLimit int,
	historyMaxLimit int,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) BalanceService {
	return &balanceService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		balanceRepo:     balanceRepo,
		historyRepo:     historyRepo,
		userLocks:       keylock.New(),
		policy:          policy,
		historyLimit:    historyLimit,
		historyMaxLimit: historyMaxLimit,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// RegisterUser creates a new zero-balance account.
func (s *balanceService) RegisterUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return util.ErrInvalidInput
	}
	err := s.withRetry(ctx, func() error {
		return s.balanceRepo.CreateAccount(ctx, s.dbExecutor, domain.NewCurrentBalance(userID))
	})
	if err != nil {
		if errors.Is(err, util.ErrDuplicateUser) {
			return err
		}
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// GetCurrentBalance returns the user's mapping. A user with no row yet reads
// as an empty mapping rather than an error (lazy account creation).
func (s *balanceService) GetCurrentBalance(ctx context.Context, userID int64) (domain.CurrencyMap, error) {
	if userID <= 0 {
		return nil, util.ErrInvalidInput
	}
	var balances domain.CurrencyMap
	err := s.withRetry(ctx, func() error {
		var err error
		balances, err = s.balanceRepo.GetBalances(ctx, s.dbExecutor, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return domain.NewCurrencyMap(), nil
		}
		return nil, fmt.Errorf("get current balance: %w", err)
	}
	return balances, nil
}

// SetBalance upserts one currency entry, leaving other currencies untouched.
func (s *balanceService) SetBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (domain.CurrencyMap, error) {
	if userID <= 0 || currency == "" {
		return nil, util.ErrInvalidInput
	}
	return s.mutate(ctx, userID, true, func(balances domain.CurrencyMap) error {
		if amount.IsNegative() && !s.policy.AllowNegativeBalance {
			return fmt.Errorf("user %d currency %s: %w", userID, currency, util.ErrInsufficientFunds)
		}
		balances.Set(currency, amount)
		return nil
	})
}

// AdjustBalance adds delta to one currency's amount, read-modify-write atomic
// per user row.
func (s *balanceService) AdjustBalance(ctx context.Context, userID int64, currency string, delta decimal.Decimal) (domain.CurrencyMap, error) {
	if userID <= 0 || currency == "" {
		return nil, util.ErrInvalidInput
	}
	return s.mutate(ctx, userID, s.policy.AdjustAutoCreate, func(balances domain.CurrencyMap) error {
		amount := balances.Get(currency).Add(delta)
		if amount.IsNegative() && !s.policy.AllowNegativeBalance {
			return fmt.Errorf("user %d currency %s: %w", userID, currency, util.ErrInsufficientFunds)
		}
		balances.Set(currency, amount)
		return nil
	})
}

// RecordSnapshot appends an immutable snapshot of the user's present mapping.
func (s *balanceService) RecordSnapshot(ctx context.Context, userID int64) (*domain.PastBalanceRecord, error) {
	if userID <= 0 {
		return nil, util.ErrInvalidInput
	}

	unlock := s.userLocks.Lock(userID)
	defer unlock()

	var record *domain.PastBalanceRecord
	err := s.withRetry(ctx, func() error {
		var err error
		record, err = s.recordSnapshotOnce(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// recordSnapshotOnce performs a single snapshot attempt inside its own transaction.
func (s *balanceService) recordSnapshotOnce(ctx context.Context, userID int64) (*domain.PastBalanceRecord, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("record snapshot: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("record snapshot: transaction controller does not implement DBExecutor")
	}

	balances, err := s.balanceRepo.GetBalancesForUpdate(ctx, txExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, util.ErrUnknownUser)
		}
		return nil, fmt.Errorf("record snapshot: %w", err)
	}

	record := domain.NewPastBalanceRecord(userID, balances)
	if err := s.historyRepo.AppendSnapshot(ctx, txExecutor, record); err != nil {
		return nil, fmt.Errorf("record snapshot: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("record snapshot: failed to commit transaction: %w", err)
	}
	return record, nil
}

// GetHistory returns a window of snapshots in ascending id order.
func (s *balanceService) GetHistory(ctx context.Context, userID int64, filter repository.HistoryFilter) ([]domain.PastBalanceRecord, int64, error) {
	if userID <= 0 {
		return nil, 0, util.ErrInvalidInput
	}
	if filter.Since != nil && filter.Until != nil && filter.Since.After(*filter.Until) {
		return nil, 0, util.ErrInvalidInput
	}
	if filter.Limit <= 0 {
		filter.Limit = s.historyLimit
	}
	if filter.Limit > s.historyMaxLimit {
		filter.Limit = s.historyMaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var records []domain.PastBalanceRecord
	var totalCount int64
	err := s.withRetry(ctx, func() error {
		var err error
		records, totalCount, err = s.historyRepo.GetByUser(ctx, s.dbExecutor, userID, filter)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get history: %w", err)
	}
	return records, totalCount, nil
}

// mutate runs one balance mutation and its paired snapshot as a single
// transaction, retrying bounded times on serialization conflicts and
// transient storage failures.
func (s *balanceService) mutate(ctx context.Context, userID int64, createIfMissing bool, apply func(domain.CurrencyMap) error) (domain.CurrencyMap, error) {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	var balances domain.CurrencyMap
	err := s.withRetry(ctx, func() error {
		var err error
		balances, err = s.mutateOnce(ctx, userID, createIfMissing, apply)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// withRetry runs one attempt of a store operation, retrying bounded times on
// serialization conflicts and transient storage failures with linear backoff.
// A canceled context aborts between attempts and surfaces ctx.Err().
func (s *balanceService) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.policy.MutationRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * s.policy.RetryBackoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// mutateOnce performs a single attempt: lock the user row, apply the change,
// write the mapping back, and append the post-mutation snapshot. Either both
// tables commit or neither does.
func (s *balanceService) mutateOnce(ctx context.Context, userID int64, createIfMissing bool, apply func(domain.CurrencyMap) error) (domain.CurrencyMap, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("mutate: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("mutate: transaction controller does not implement DBExecutor")
	}

	if createIfMissing {
		if err := s.balanceRepo.EnsureAccount(ctx, txExecutor, userID); err != nil {
			return nil, fmt.Errorf("mutate: %w", err)
		}
	}

	balances, err := s.balanceRepo.GetBalancesForUpdate(ctx, txExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, util.ErrUnknownUser)
		}
		return nil, fmt.Errorf("mutate: %w", err)
	}

	if err := apply(balances); err != nil {
		return nil, err
	}

	if err := s.balanceRepo.UpdateBalances(ctx, txExecutor, userID, balances); err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}

	record := domain.NewPastBalanceRecord(userID, balances)
	if err := s.historyRepo.AppendSnapshot(ctx, txExecutor, record); err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("mutate: failed to commit transaction: %w", err)
	}
	return balances, nil
}

// isRetryable reports whether the failure is worth another attempt inside the
// store: lock conflicts and transient storage outages, nothing else.
func isRetryable(err error) bool {
	return errors.Is(err, util.ErrConcurrentUpdateConflict) ||
		errors.Is(err, util.ErrStorageUnavailable)
}
