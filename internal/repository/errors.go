package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isPQError(err, pqUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return isPQError(err, pqForeignKeyViolation)
}
