/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Transaction state errors. These are programming errors on the caller's
// side: the connection wrapper was driven through an invalid transition.
// None of them is retryable.
var (
	ErrCannotBeginTxnWithTxnFalse  = errors.New("cannot begin transaction: transaction support is disabled for this connection")
	ErrCannotCommitTxnWithTxnFalse = errors.New("cannot commit transaction: transaction support is disabled for this connection")
	ErrNestedTxnNotSupported       = errors.New("nested transaction not supported")
	ErrTxnCantCommitNoOpenTxn      = errors.New("cannot commit transaction: no open transaction")
	ErrNoTxn                       = errors.New("no active transaction")
	ErrTxnAlreadyCommitted         = errors.New("transaction has already been committed")
	ErrTxnAlreadyRolledBack        = errors.New("transaction has already been rolled back")
	ErrSavepointWithoutTransaction = errors.New("cannot use a savepoint outside a transaction")
)

// Transient backend conditions surfaced during a transaction. The wrapper
// reports them and never retries; retry policy belongs to the caller.
var (
	ErrTxnDeadlock          = errors.New("transaction deadlock detected")
	ErrTxnLockTimeout       = errors.New("transaction lock wait timeout")
	ErrTxnConnectionLost    = errors.New("connection lost during transaction")
	ErrTxnIsolationConflict = errors.New("transaction isolation conflict")
)

// SavepointNotFoundError reports a release or rollback-to against a savepoint
// name that was never created (or already released) on this transaction.
type SavepointNotFoundError struct {
	Savepoint string
}

func (e *SavepointNotFoundError) Error() string {
	return fmt.Sprintf("transaction savepoint %q not found", e.Savepoint)
}

// TxnTimeoutError reports a backend-side statement or transaction timeout.
type TxnTimeoutError struct {
	TimeoutMS int64
	Err       error
}

func (e *TxnTimeoutError) Error() string {
	return fmt.Sprintf("transaction timeout after %dms: %v", e.TimeoutMS, e.Err)
}

func (e *TxnTimeoutError) Unwrap() error { return e.Err }

// SQLError classifies a backend/driver error into a backend-neutral kind.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DeadlockErr
	LockTimeoutErr
	SerializationErr
	QueryTimeoutErr
	ConnectionLostErr
	DataTruncatedErr
	InvalidTypeCastErr
)

// ClassifySQLError inspects a driver error and reports its kind. Typed
// errors from go-sql-driver/mysql and lib/pq are matched first; everything
// else falls back to SQLSTATE/message matching so the sqlite shim is covered
// too.
func ClassifySQLError(err error) (bool, SQLError) {
	if err == nil {
		return false, UnknownErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return true, NoColumnErr
		case 1046, 1049, 1146:
			return true, NoTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1213:
			return true, DeadlockErr
		case 1205:
			return true, LockTimeoutErr
		case 1265:
			return true, DataTruncatedErr
		case 2006, 2013:
			return true, ConnectionLostErr
		default:
			return true, UnknownErr
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "42703":
			return true, NoColumnErr
		case "42P01":
			return true, NoTableErr
		case "23505":
			return true, DuplicateKeyErr
		case "23502":
			return true, NotNullViolationErr
		case "23503":
			return true, ForeignKeyViolationErr
		case "23514":
			return true, CheckConstraintViolationErr
		case "40P01":
			return true, DeadlockErr
		case "55P03":
			return true, LockTimeoutErr
		case "40001":
			return true, SerializationErr
		case "57014":
			return true, QueryTimeoutErr
		case "22001":
			return true, DataTruncatedErr
		case "42804":
			return true, InvalidTypeCastErr
		default:
			if strings.HasPrefix(string(pqErr.Code), "08") {
				return true, ConnectionLostErr
			}
			return true, UnknownErr
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true, ConnectionLostErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, QueryTimeoutErr
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "sqlstate 42703"),
		strings.Contains(s, "undefined column"),
		strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "sqlstate 42p01"),
		strings.Contains(s, "undefined table"),
		strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "duplicate key value"),
		strings.Contains(s, "unique constraint failed"),
		strings.Contains(s, "sqlstate 23505"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not-null constraint"),
		strings.Contains(s, "not null constraint failed"),
		strings.Contains(s, "sqlstate 23502"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key violation"),
		strings.Contains(s, "foreign key constraint failed"),
		strings.Contains(s, "sqlstate 23503"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint"),
		strings.Contains(s, "sqlstate 23514"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "deadlock"):
		return true, DeadlockErr
	case strings.Contains(s, "lock wait timeout"),
		strings.Contains(s, "database is locked"),
		strings.Contains(s, "could not obtain lock"):
		return true, LockTimeoutErr
	case strings.Contains(s, "could not serialize access"):
		return true, SerializationErr
	case strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "broken pipe"):
		return true, ConnectionLostErr
	}
	return false, UnknownErr
}

// MapTxnError converts a backend error raised inside a transaction into the
// transaction-level kind the caller is meant to see. Unclassified errors are
// wrapped with the operation name and the original message preserved.
func MapTxnError(op string, err error) error {
	if err == nil {
		return nil
	}
	if is, kind := ClassifySQLError(err); is {
		switch kind {
		case DeadlockErr:
			return fmt.Errorf("%s: %w: %v", op, ErrTxnDeadlock, err)
		case LockTimeoutErr:
			return fmt.Errorf("%s: %w: %v", op, ErrTxnLockTimeout, err)
		case SerializationErr:
			return fmt.Errorf("%s: %w: %v", op, ErrTxnIsolationConflict, err)
		case ConnectionLostErr:
			return fmt.Errorf("%s: %w: %v", op, ErrTxnConnectionLost, err)
		case QueryTimeoutErr:
			return &TxnTimeoutError{Err: fmt.Errorf("%s: %w", op, err)}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorSeverity ranks how alarming an error is for operators.
type ErrorSeverity int

const (
	SeverityLow      ErrorSeverity = iota // expected transaction-state errors
	SeverityMedium                        // timeouts, deadlocks
	SeverityHigh                          // connection loss
	SeverityCritical                      // migration failures
)

// ErrorCategory groups errors by where they originate.
type ErrorCategory int

const (
	CategoryTransactionState ErrorCategory = iota
	CategoryTransactionControl
	CategoryConcurrency
	CategoryConnection
	CategoryConfiguration
	CategoryUnknown
)

// Severity classifies an error for logging/alerting. Purely informational.
func Severity(err error) ErrorSeverity {
	switch Category(err) {
	case CategoryTransactionState, CategoryTransactionControl:
		return SeverityLow
	case CategoryConcurrency:
		return SeverityMedium
	case CategoryConnection:
		return SeverityHigh
	case CategoryConfiguration:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Category reports where an error originates.
func Category(err error) ErrorCategory {
	var spErr *SavepointNotFoundError
	var toErr *TxnTimeoutError
	var migErr *MigrationError
	switch {
	case errors.Is(err, ErrTxnCantCommitNoOpenTxn),
		errors.Is(err, ErrNoTxn),
		errors.Is(err, ErrTxnAlreadyCommitted),
		errors.Is(err, ErrTxnAlreadyRolledBack):
		return CategoryTransactionState
	case errors.Is(err, ErrCannotBeginTxnWithTxnFalse),
		errors.Is(err, ErrCannotCommitTxnWithTxnFalse),
		errors.Is(err, ErrNestedTxnNotSupported),
		errors.Is(err, ErrSavepointWithoutTransaction),
		errors.As(err, &spErr):
		return CategoryTransactionControl
	case errors.Is(err, ErrTxnDeadlock),
		errors.Is(err, ErrTxnLockTimeout),
		errors.Is(err, ErrTxnIsolationConflict),
		errors.As(err, &toErr):
		return CategoryConcurrency
	case errors.Is(err, ErrTxnConnectionLost):
		return CategoryConnection
	case errors.As(err, &migErr):
		return CategoryConfiguration
	default:
		return CategoryUnknown
	}
}

// IsRetryable reports whether retrying the whole operation can help. The
// wrapper itself never retries; this is a hint for callers that do.
func IsRetryable(err error) bool {
	var toErr *TxnTimeoutError
	return errors.Is(err, ErrTxnDeadlock) ||
		errors.Is(err, ErrTxnLockTimeout) ||
		errors.Is(err, ErrTxnConnectionLost) ||
		errors.As(err, &toErr)
}

// RequiresRollback reports whether the backend has aborted the transaction
// and the caller must roll back before issuing further statements.
func RequiresRollback(err error) bool {
	var toErr *TxnTimeoutError
	return errors.Is(err, ErrTxnDeadlock) ||
		errors.Is(err, ErrTxnIsolationConflict) ||
		errors.Is(err, ErrTxnConnectionLost) ||
		errors.As(err, &toErr)
}

// RecommendedRetryDelay suggests a backoff before a caller-side retry.
// Zero means the error is not worth retrying.
func RecommendedRetryDelay(err error) time.Duration {
	var toErr *TxnTimeoutError
	switch {
	case errors.Is(err, ErrTxnDeadlock):
		return 100 * time.Millisecond
	case errors.Is(err, ErrTxnLockTimeout):
		return 200 * time.Millisecond
	case errors.As(err, &toErr):
		return 500 * time.Millisecond
	case errors.Is(err, ErrTxnConnectionLost):
		return time.Second
	default:
		return 0
	}
}
