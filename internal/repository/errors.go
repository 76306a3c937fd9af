package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Lock related error codes worth retrying.
const (
	pgLockNotAvailable   = "55P03"
	pgDeadlockDetected   = "40P01"
	myLockWaitTimeout    = 1205
	myDeadlockRolledBack = 1213
)

// IsTransient reports whether err is a lock timeout or deadlock that a retry may clear.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == myLockWaitTimeout || myErr.Number == myDeadlockRolledBack
	}
	return strings.Contains(strings.ToLower(err.Error()), "lock wait timeout")
}
