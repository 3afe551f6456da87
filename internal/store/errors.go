package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

// notFound maps lookup errors to ErrNotFound. An id that is not a UUID
// cannot match any row.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) || hasCode(err, invalidTextRepresentation) {
		return ErrNotFound
	}
	return err
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
