// internal/repository/postgres/errors.go
package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"balance-ledger/internal/util"

	"github.com/lib/pq"
)

// translateErr maps driver-level failures onto the application error taxonomy
// so callers can react without importing lib/pq.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", util.ErrConcurrentUpdateConflict, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", util.ErrDuplicateUser, err)
		}
		if pqErr.Code.Class() == "08" { // connection_exception
			return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	return err
}
