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

package repository

import (
	"errors"
	"fmt"
)

// EntityNotFoundError reports a by-id operation that matched no row. The
// table name and the identifier travel with the error so callers can build
// a precise response without string parsing.
type EntityNotFoundError struct {
	Table string
	ID    interface{}
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity not found: table %q id %v", e.Table, e.ID)
}

// IsNotFound reports whether err is an EntityNotFoundError.
func IsNotFound(err error) bool {
	var nf *EntityNotFoundError
	return errors.As(err, &nf)
}

// UniqueViolationError reports a create or update rejected by a unique
// constraint. The backend error stays wrapped underneath.
type UniqueViolationError struct {
	Table      string
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("unique violation on table %q constraint %q: %v", e.Table, e.Constraint, e.Err)
	}
	return fmt.Sprintf("unique violation on table %q: %v", e.Table, e.Err)
}

func (e *UniqueViolationError) Unwrap() error { return e.Err }

// UnknownColumnError reports a filter, order-by, or field referencing a
// column the descriptor does not declare. Raised during translation, before
// any statement reaches the backend.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q for table %q", e.Column, e.Table)
}

// DuplicateFieldError reports a field set that names the same column twice.
type DuplicateFieldError struct {
	Column string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field set already contains column %q", e.Column)
}

// InjectedColumnError reports a caller-supplied value for a column the
// composer maintains itself (owner_id, cid, ctime, mid, mtime). Accepting
// such a value would make the winner ambiguous, so it is rejected outright.
type InjectedColumnError struct {
	Column string
}

func (e *InjectedColumnError) Error() string {
	return fmt.Sprintf("column %q is maintained by the repository and cannot be set by callers", e.Column)
}
