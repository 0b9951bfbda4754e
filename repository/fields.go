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
	"time"

	"github.com/tomoncle/mole/types"
)

// Field is one column/value pair bound into an insert or update statement.
type Field struct {
	Column string
	Value  interface{}
}

// FieldSet is an append-only, duplicate-rejecting collection of fields. Order
// of addition is preserved so generated statements are stable.
type FieldSet struct {
	fields []Field
	index  map[string]int
}

// NewFieldSet returns an empty field set.
func NewFieldSet() *FieldSet {
	return &FieldSet{index: make(map[string]int)}
}

// Add appends a column/value pair. Adding a column twice fails with
// DuplicateFieldError; there is no way to overwrite an already-added value.
func (fs *FieldSet) Add(column string, value interface{}) error {
	if _, dup := fs.index[column]; dup {
		return &DuplicateFieldError{Column: column}
	}
	fs.index[column] = len(fs.fields)
	fs.fields = append(fs.fields, Field{Column: column, Value: value})
	return nil
}

// Has reports whether the set already names the column.
func (fs *FieldSet) Has(column string) bool {
	_, ok := fs.index[column]
	return ok
}

// Get returns the value bound to column and whether it is present.
func (fs *FieldSet) Get(column string) (interface{}, bool) {
	i, ok := fs.index[column]
	if !ok {
		return nil, false
	}
	return fs.fields[i].Value, true
}

// Len returns the number of fields in the set.
func (fs *FieldSet) Len() int { return len(fs.fields) }

// Fields returns a copy of the fields in addition order.
func (fs *FieldSet) Fields() []Field {
	out := make([]Field, len(fs.fields))
	copy(out, fs.fields)
	return out
}

// FieldsOf builds a field set from alternating column, value arguments.
// It panics on a malformed pair list or duplicate column; use Add for
// caller-supplied input.
func FieldsOf(pairs ...interface{}) *FieldSet {
	if len(pairs)%2 != 0 {
		panic("repository.FieldsOf: odd number of arguments")
	}
	fs := NewFieldSet()
	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic("repository.FieldsOf: column name must be a string")
		}
		if err := fs.Add(col, pairs[i+1]); err != nil {
			panic(err)
		}
	}
	return fs
}

// FieldComposer injects ownership and timestamp columns into caller-supplied
// field sets according to the entity descriptor. Now is the single time
// source; every timestamp injected for one statement carries the same
// instant.
type FieldComposer struct {
	Now func() time.Time
}

func (c FieldComposer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// PrepareForCreate validates the caller's fields against the descriptor and
// appends the injected columns for an insert: owner_id first when the table
// declares ownership, then cid, ctime, mid, mtime when it tracks timestamps.
// Created-* and modified-* columns receive the same actor and the same
// instant, so a freshly created row reads as "modified at creation".
func (c FieldComposer) PrepareForCreate(d types.Descriptor, actor interface{}, fs *FieldSet) ([]Field, error) {
	fields, err := validateFields(d, fs)
	if err != nil {
		return nil, err
	}
	if d.HasOwnerID() {
		fields = append(fields, Field{Column: types.ColumnOwnerID, Value: actor})
	}
	if d.HasTimestamps() {
		now := c.now()
		fields = append(fields,
			Field{Column: types.ColumnCreatedBy, Value: actor},
			Field{Column: types.ColumnCreatedAt, Value: now},
			Field{Column: types.ColumnModifiedBy, Value: actor},
			Field{Column: types.ColumnModifiedAt, Value: now},
		)
	}
	return fields, nil
}

// PrepareForUpdate validates the caller's fields and appends mid/mtime when
// the table tracks timestamps. Creation columns are never touched on update.
func (c FieldComposer) PrepareForUpdate(d types.Descriptor, actor interface{}, fs *FieldSet) ([]Field, error) {
	fields, err := validateFields(d, fs)
	if err != nil {
		return nil, err
	}
	if d.HasTimestamps() {
		fields = append(fields,
			Field{Column: types.ColumnModifiedBy, Value: actor},
			Field{Column: types.ColumnModifiedAt, Value: c.now()},
		)
	}
	return fields, nil
}

var injectedColumns = map[string]struct{}{
	types.ColumnOwnerID:    {},
	types.ColumnCreatedBy:  {},
	types.ColumnCreatedAt:  {},
	types.ColumnModifiedBy: {},
	types.ColumnModifiedAt: {},
}

func validateFields(d types.Descriptor, fs *FieldSet) ([]Field, error) {
	writable := types.WritableColumns(d)
	fields := fs.Fields()
	for _, f := range fields {
		if _, injected := injectedColumns[f.Column]; injected {
			return nil, &InjectedColumnError{Column: f.Column}
		}
		if _, ok := writable[f.Column]; !ok {
			return nil, &UnknownColumnError{Table: d.Table(), Column: f.Column}
		}
	}
	return fields, nil
}
