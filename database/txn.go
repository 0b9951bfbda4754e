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
	"fmt"
	"regexp"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// TxnState is the lifecycle state of a Conn's transaction.
type TxnState int

const (
	StateNoTxn TxnState = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s TxnState) String() string {
	switch s {
	case StateNoTxn:
		return "no_txn"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "invalid"
	}
}

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Conn wraps one logical database connection with an explicit transaction
// state machine. Every repository statement executes through it: outside a
// transaction statements go to the pool, inside they go to the open bun.Tx.
//
// A Conn belongs to exactly one request/operation scope. It is not safe for
// concurrent use and does not detect it; sharing one across goroutines is a
// caller bug. The pool underneath is the only shared resource.
type Conn struct {
	db         *bun.DB
	tx         bun.Tx
	state      TxnState
	withTxn    bool
	timeout    time.Duration
	savepoints map[string]struct{}
	logger     Logger
}

// NewConn wraps db. When withTxn is false the Conn executes every statement
// in auto-commit mode and Begin/Commit fail with the txn-disabled kinds.
func NewConn(db *bun.DB, withTxn bool) *Conn {
	return &Conn{
		db:      db,
		state:   StateNoTxn,
		withTxn: withTxn,
		logger:  GetLogger(),
	}
}

// DB returns the handle statements must execute on: the open transaction
// when there is one, the pooled connection otherwise. The Conn knows nothing
// about entities; the repository layer builds the statements.
func (c *Conn) DB() bun.IDB {
	if c.state == StateOpen {
		return c.tx
	}
	return c.db
}

// WithTimeout records the statement timeout configured for this connection.
// The Conn does not enforce it; it is what a TxnTimeoutError reports when the
// backend times out underneath.
func (c *Conn) WithTimeout(d time.Duration) *Conn {
	c.timeout = d
	return c
}

// Dialect exposes the underlying dialect for feature checks.
func (c *Conn) Dialect() schema.Dialect { return c.db.Dialect() }

// HasFeature reports whether the backend supports a dialect feature.
func (c *Conn) HasFeature(f feature.Feature) bool { return c.db.HasFeature(f) }

// State returns the current transaction state.
func (c *Conn) State() TxnState { return c.state }

// InTxn reports whether a transaction is currently open.
func (c *Conn) InTxn() bool { return c.state == StateOpen }

// Begin opens a transaction. It fails with ErrCannotBeginTxnWithTxnFalse when
// the Conn was created without transaction support, with
// ErrNestedTxnNotSupported when one is already open, and with the terminal
// state's error after a commit or rollback.
func (c *Conn) Begin(ctx context.Context) error {
	if !c.withTxn {
		return ErrCannotBeginTxnWithTxnFalse
	}
	switch c.state {
	case StateOpen:
		return ErrNestedTxnNotSupported
	case StateCommitted:
		return ErrTxnAlreadyCommitted
	case StateRolledBack:
		return ErrTxnAlreadyRolledBack
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return c.mapTxnError("begin", err)
	}
	c.tx = tx
	c.state = StateOpen
	c.savepoints = make(map[string]struct{})
	c.logger.Debug("Transaction started")
	return nil
}

// Commit commits the open transaction. Valid only from the open state; every
// other state reports its own error kind so callers can tell a double commit
// from a commit that never had a transaction.
func (c *Conn) Commit(ctx context.Context) error {
	if !c.withTxn {
		return ErrCannotCommitTxnWithTxnFalse
	}
	switch c.state {
	case StateNoTxn:
		return ErrTxnCantCommitNoOpenTxn
	case StateCommitted:
		return ErrTxnAlreadyCommitted
	case StateRolledBack:
		return ErrTxnAlreadyRolledBack
	}

	if err := c.tx.Commit(); err != nil {
		// A failed commit leaves the backend transaction aborted; the
		// connection returns to the pool with nothing applied.
		c.state = StateRolledBack
		c.savepoints = nil
		return c.mapTxnError("commit", err)
	}
	c.state = StateCommitted
	c.savepoints = nil
	c.logger.Debug("Transaction committed")
	return nil
}

// Rollback rolls back the open transaction. Valid only from the open state.
func (c *Conn) Rollback(ctx context.Context) error {
	switch c.state {
	case StateNoTxn:
		return ErrNoTxn
	case StateCommitted:
		return ErrTxnAlreadyCommitted
	case StateRolledBack:
		return ErrTxnAlreadyRolledBack
	}

	c.state = StateRolledBack
	c.savepoints = nil
	if err := c.tx.Rollback(); err != nil {
		return c.mapTxnError("rollback", err)
	}
	c.logger.Debug("Transaction rolled back")
	return nil
}

// Savepoint creates a named savepoint inside the open transaction.
func (c *Conn) Savepoint(ctx context.Context, name string) error {
	if c.state != StateOpen {
		return ErrSavepointWithoutTransaction
	}
	if err := validSavepoint(name); err != nil {
		return err
	}
	if _, err := c.tx.NewRaw("SAVEPOINT ?", bun.Ident(name)).Exec(ctx); err != nil {
		return c.mapTxnError("savepoint", err)
	}
	c.savepoints[name] = struct{}{}
	return nil
}

// ReleaseSavepoint discards a savepoint created earlier in this transaction.
func (c *Conn) ReleaseSavepoint(ctx context.Context, name string) error {
	if c.state != StateOpen {
		return ErrSavepointWithoutTransaction
	}
	if _, ok := c.savepoints[name]; !ok {
		return &SavepointNotFoundError{Savepoint: name}
	}
	if _, err := c.tx.NewRaw("RELEASE SAVEPOINT ?", bun.Ident(name)).Exec(ctx); err != nil {
		return c.mapTxnError("release savepoint", err)
	}
	delete(c.savepoints, name)
	return nil
}

// RollbackToSavepoint rewinds the open transaction to a savepoint created
// earlier. The savepoint itself survives and may be rewound to again.
func (c *Conn) RollbackToSavepoint(ctx context.Context, name string) error {
	if c.state != StateOpen {
		return ErrSavepointWithoutTransaction
	}
	if _, ok := c.savepoints[name]; !ok {
		return &SavepointNotFoundError{Savepoint: name}
	}
	if _, err := c.tx.NewRaw("ROLLBACK TO SAVEPOINT ?", bun.Ident(name)).Exec(ctx); err != nil {
		return c.mapTxnError("rollback to savepoint", err)
	}
	return nil
}

// Release returns the Conn's resources. If a transaction is still open (the
// surrounding task was cancelled or errored mid-flight) it is rolled back;
// nothing can have been partially committed. Safe to defer unconditionally.
func (c *Conn) Release(ctx context.Context) error {
	if c.state != StateOpen {
		return nil
	}
	err := c.Rollback(ctx)
	if err != nil && !errors.Is(err, ErrNoTxn) {
		c.logger.Warn("Rollback on release failed", "error", err)
		return err
	}
	return nil
}

// RunInTxn executes fn inside a transaction: begin, fn, then commit on
// success or rollback on failure. The fn error wins over a rollback error.
func (c *Conn) RunInTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := c.Rollback(ctx); rbErr != nil {
			c.logger.Error("Rollback after failure failed", "error", rbErr)
		}
		return err
	}
	return c.Commit(ctx)
}

// mapTxnError is MapTxnError with this connection's configured timeout
// stamped onto timeout kinds.
func (c *Conn) mapTxnError(op string, err error) error {
	mapped := MapTxnError(op, err)
	var timeoutErr *TxnTimeoutError
	if errors.As(mapped, &timeoutErr) {
		timeoutErr.TimeoutMS = c.timeout.Milliseconds()
	}
	return mapped
}

func validSavepoint(name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	return nil
}
