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

package types

import "fmt"

// Column names injected by the field composer for tables that declare
// ownership or timestamp tracking.
const (
	ColumnOwnerID    = "owner_id"
	ColumnCreatedBy  = "cid"
	ColumnCreatedAt  = "ctime"
	ColumnModifiedBy = "mid"
	ColumnModifiedAt = "mtime"
)

// Descriptor is the static metadata contract one storable entity kind
// satisfies. Each entity module defines its descriptor once; the value is
// immutable for the lifetime of the program.
type Descriptor interface {
	// Schema returns the database schema the entity table lives in.
	Schema() string

	// Table returns the entity table name.
	Table() string

	// IDColumn returns the identifier column name. Never empty.
	IDColumn() string

	// Columns returns every column the entity exposes to callers, not
	// counting the identifier and the injected ownership/timestamp columns.
	Columns() []string

	// EnumColumns returns the subset of Columns stored as enumerated types.
	EnumColumns() []string

	// HasTimestamps reports whether the table carries the cid/ctime/mid/mtime
	// columns maintained by the field composer.
	HasTimestamps() bool

	// HasOwnerID reports whether the table carries an owner_id column set on
	// create.
	HasOwnerID() bool
}

// TableDescriptor is the plain-value Descriptor implementation used by entity
// modules.
type TableDescriptor struct {
	SchemaName      string
	TableName       string
	IDName          string
	ColumnNames     []string
	EnumColumnNames []string
	Timestamps      bool
	OwnerID         bool
}

func (d TableDescriptor) Schema() string        { return d.SchemaName }
func (d TableDescriptor) Table() string         { return d.TableName }
func (d TableDescriptor) IDColumn() string      { return d.IDName }
func (d TableDescriptor) Columns() []string     { return d.ColumnNames }
func (d TableDescriptor) EnumColumns() []string { return d.EnumColumnNames }
func (d TableDescriptor) HasTimestamps() bool   { return d.Timestamps }
func (d TableDescriptor) HasOwnerID() bool      { return d.OwnerID }

// ValidateDescriptor checks the invariants every descriptor must hold before
// it is handed to a repository: non-empty table and identifier column, and no
// enum column outside the declared column set.
func ValidateDescriptor(d Descriptor) error {
	if d.Table() == "" {
		return fmt.Errorf("descriptor: table name is empty")
	}
	if d.IDColumn() == "" {
		return fmt.Errorf("descriptor %s: identifier column is empty", d.Table())
	}
	known := make(map[string]struct{}, len(d.Columns()))
	for _, c := range d.Columns() {
		known[c] = struct{}{}
	}
	for _, c := range d.EnumColumns() {
		if _, ok := known[c]; !ok {
			return fmt.Errorf("descriptor %s: enum column %q is not a declared column", d.Table(), c)
		}
	}
	return nil
}

// WritableColumns returns the set of columns a caller-supplied field set may
// reference for the given descriptor, excluding the composer-injected ones.
func WritableColumns(d Descriptor) map[string]struct{} {
	cols := make(map[string]struct{}, len(d.Columns())+1)
	cols[d.IDColumn()] = struct{}{}
	for _, c := range d.Columns() {
		cols[c] = struct{}{}
	}
	return cols
}

// FilterableColumns returns the set of columns a filter or order-by may
// reference for the given descriptor, including the injected ones when the
// descriptor declares them.
func FilterableColumns(d Descriptor) map[string]struct{} {
	cols := WritableColumns(d)
	if d.HasOwnerID() {
		cols[ColumnOwnerID] = struct{}{}
	}
	if d.HasTimestamps() {
		cols[ColumnCreatedBy] = struct{}{}
		cols[ColumnCreatedAt] = struct{}{}
		cols[ColumnModifiedBy] = struct{}{}
		cols[ColumnModifiedAt] = struct{}{}
	}
	return cols
}
