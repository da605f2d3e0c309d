// internal/domain/history.go
package domain

import "time"

// PastBalanceRecord is one immutable snapshot of a user's currency mapping.
// Rows are append-only: never updated, never deleted. For one user, ascending
// id order is chronological order.
type PastBalanceRecord struct {
	ID       int64       `db:"id" json:"id"`             // Primary key, BIGSERIAL in DB
	UserID   int64       `db:"user_id" json:"user_id"`   // User whose snapshot this is
	Balances CurrencyMap `db:"balances" json:"balances"` // Copy of the mapping at snapshot time
	Changed  time.Time   `db:"changed" json:"changed"`   // Snapshot creation time
}

// NewPastBalanceRecord captures a snapshot of the given mapping. The mapping
// is cloned so later mutations of the live balance do not leak into history.
func NewPastBalanceRecord(userID int64, balances CurrencyMap) *PastBalanceRecord {
	return &PastBalanceRecord{
		UserID:   userID,
		Balances: balances.Clone(),
		Changed:  time.Now().UTC(),
	}
}
