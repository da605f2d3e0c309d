// internal/domain/balance.go
package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"balance-ledger/internal/util"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// CurrencyMap associates currency codes with amounts for one user at one
// point in time. It is stored as a JSON object in the database, e.g.
// {"gold": 120, "gems": 3}.
type CurrencyMap map[string]decimal.Decimal

// NewCurrencyMap creates an empty currency mapping.
func NewCurrencyMap() CurrencyMap {
	return CurrencyMap{}
}

// Get returns the amount for a currency, treating a missing key as zero.
func (m CurrencyMap) Get(currency string) decimal.Decimal {
	if amount, ok := m[currency]; ok {
		return amount
	}
	return decimal.Zero
}

// Set stores the amount for a currency, leaving other entries untouched.
func (m CurrencyMap) Set(currency string, amount decimal.Decimal) {
	m[currency] = amount
}

// Clone returns an independent copy of the mapping. Snapshots must not
// alias the live map.
func (m CurrencyMap) Clone() CurrencyMap {
	clone := make(CurrencyMap, len(m))
	for currency, amount := range m {
		clone[currency] = amount
	}
	return clone
}

// MarshalJSON renders amounts as plain JSON numbers rather than the quoted
// strings shopspring/decimal emits by default.
func (m CurrencyMap) MarshalJSON() ([]byte, error) {
	currencies := make([]string, 0, len(m))
	for currency := range m {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies) // deterministic output

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, currency := range currencies {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(currency)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(m[currency].String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts both numeric and string-encoded amounts.
func (m *CurrencyMap) UnmarshalJSON(data []byte) error {
	raw := map[string]decimal.Decimal{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = raw
	return nil
}

// Value implements driver.Valuer so the mapping can be written to a JSONB column.
func (m CurrencyMap) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode currency mapping: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner for reading the JSONB column. A row whose
// document does not parse as a currency mapping surfaces as ErrCorruptBalanceData.
func (m *CurrencyMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = NewCurrencyMap()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%w: unexpected column type %T", util.ErrCorruptBalanceData, src)
	}
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", util.ErrCorruptBalanceData, err)
	}
	return nil
}

// CurrentBalance is the single authoritative, mutable currency mapping per user.
type CurrentBalance struct {
	UserID   int64       `db:"user_id" json:"user_id"`   // Primary key
	Balances CurrencyMap `db:"balances" json:"balances"` // JSONB, defaults to '{}'
}

// NewCurrentBalance creates a zero-balance row for a user.
func NewCurrentBalance(userID int64) *CurrentBalance {
	return &CurrentBalance{
		UserID:   userID,
		Balances: NewCurrencyMap(),
	}
}
