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
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySQLErrorMySQL(t *testing.T) {
	cases := map[uint16]SQLError{
		1054: NoColumnErr,
		1146: NoTableErr,
		1062: DuplicateKeyErr,
		1048: NotNullViolationErr,
		1452: ForeignKeyViolationErr,
		1213: DeadlockErr,
		1205: LockTimeoutErr,
		2013: ConnectionLostErr,
	}
	for number, want := range cases {
		ok, kind := ClassifySQLError(&mysql.MySQLError{Number: number, Message: "x"})
		assert.True(t, ok, "number %d", number)
		assert.Equal(t, want, kind, "number %d", number)
	}
}

func TestClassifySQLErrorPostgres(t *testing.T) {
	cases := map[string]SQLError{
		"42703": NoColumnErr,
		"42P01": NoTableErr,
		"23505": DuplicateKeyErr,
		"23503": ForeignKeyViolationErr,
		"40P01": DeadlockErr,
		"55P03": LockTimeoutErr,
		"40001": SerializationErr,
		"57014": QueryTimeoutErr,
		"08006": ConnectionLostErr,
	}
	for code, want := range cases {
		ok, kind := ClassifySQLError(&pq.Error{Code: pq.ErrorCode(code)})
		assert.True(t, ok, "code %s", code)
		assert.Equal(t, want, kind, "code %s", code)
	}
}

func TestClassifySQLErrorFallbacks(t *testing.T) {
	ok, kind := ClassifySQLError(errors.New("database is locked"))
	assert.True(t, ok)
	assert.Equal(t, LockTimeoutErr, kind)

	ok, kind = ClassifySQLError(errors.New("UNIQUE constraint failed: tickets.subject"))
	assert.True(t, ok)
	assert.Equal(t, DuplicateKeyErr, kind)

	ok, kind = ClassifySQLError(context.DeadlineExceeded)
	assert.True(t, ok)
	assert.Equal(t, QueryTimeoutErr, kind)

	ok, _ = ClassifySQLError(errors.New("something else entirely"))
	assert.False(t, ok)
}

func TestMapTxnErrorWrapsConcurrencyKinds(t *testing.T) {
	err := MapTxnError("commit", &mysql.MySQLError{Number: 1213, Message: "deadlock found"})
	assert.ErrorIs(t, err, ErrTxnDeadlock)

	err = MapTxnError("commit", &mysql.MySQLError{Number: 1205, Message: "lock wait timeout"})
	assert.ErrorIs(t, err, ErrTxnLockTimeout)

	err = MapTxnError("commit", &pq.Error{Code: "40001"})
	assert.ErrorIs(t, err, ErrTxnIsolationConflict)

	err = MapTxnError("begin", &pq.Error{Code: "57014"})
	var to *TxnTimeoutError
	assert.ErrorAs(t, err, &to)

	plain := errors.New("something else")
	err = MapTxnError("commit", plain)
	assert.ErrorIs(t, err, plain)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.Equal(t, CategoryTransactionState, Category(ErrTxnAlreadyCommitted))
	assert.Equal(t, CategoryTransactionControl, Category(ErrNestedTxnNotSupported))
	assert.Equal(t, CategoryTransactionControl, Category(&SavepointNotFoundError{Savepoint: "sp"}))
	assert.Equal(t, CategoryConcurrency, Category(ErrTxnDeadlock))
	assert.Equal(t, CategoryConnection, Category(ErrTxnConnectionLost))
	assert.Equal(t, CategoryConfiguration, Category(&MigrationError{Version: "001", Err: errors.New("x")}))

	assert.Equal(t, SeverityLow, Severity(ErrNoTxn))
	assert.Equal(t, SeverityMedium, Severity(ErrTxnDeadlock))
	assert.Equal(t, SeverityHigh, Severity(ErrTxnConnectionLost))
	assert.Equal(t, SeverityCritical, Severity(&MigrationError{Err: errors.New("x")}))
}

func TestRetryHints(t *testing.T) {
	assert.True(t, IsRetryable(ErrTxnDeadlock))
	assert.True(t, IsRetryable(&TxnTimeoutError{TimeoutMS: 100, Err: errors.New("x")}))
	assert.False(t, IsRetryable(ErrTxnAlreadyCommitted))

	assert.True(t, RequiresRollback(ErrTxnDeadlock))
	assert.False(t, RequiresRollback(ErrTxnLockTimeout))

	assert.Equal(t, 100*time.Millisecond, RecommendedRetryDelay(ErrTxnDeadlock))
	assert.Equal(t, time.Duration(0), RecommendedRetryDelay(ErrNoTxn))
}

func TestTxnErrorsWrapOperation(t *testing.T) {
	err := MapTxnError("rollback", &mysql.MySQLError{Number: 1213, Message: "deadlock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback")
}
