package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"bapmate/internal/model"
)

// isUniqueViolation reports a PostgreSQL unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// dbError wraps a driver failure as a transient backend error.
func dbError(op string, err error) error {
	return model.Transient(fmt.Errorf("%s: %w", op, err))
}
