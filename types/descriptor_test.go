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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketDescriptor() TableDescriptor {
	return TableDescriptor{
		TableName:       "tickets",
		IDName:          "id",
		ColumnNames:     []string{"subject", "status", "priority"},
		EnumColumnNames: []string{"status"},
		Timestamps:      true,
		OwnerID:         true,
	}
}

func TestValidateDescriptor(t *testing.T) {
	require.NoError(t, ValidateDescriptor(ticketDescriptor()))

	noTable := ticketDescriptor()
	noTable.TableName = ""
	assert.ErrorContains(t, ValidateDescriptor(noTable), "table name is empty")

	noID := ticketDescriptor()
	noID.IDName = ""
	assert.ErrorContains(t, ValidateDescriptor(noID), "identifier column is empty")

	badEnum := ticketDescriptor()
	badEnum.EnumColumnNames = []string{"mood"}
	assert.ErrorContains(t, ValidateDescriptor(badEnum), `enum column "mood"`)
}

func TestWritableColumns(t *testing.T) {
	cols := WritableColumns(ticketDescriptor())

	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "subject")
	assert.NotContains(t, cols, ColumnOwnerID)
	assert.NotContains(t, cols, ColumnCreatedAt)
}

func TestFilterableColumnsIncludeInjected(t *testing.T) {
	cols := FilterableColumns(ticketDescriptor())

	assert.Contains(t, cols, ColumnOwnerID)
	assert.Contains(t, cols, ColumnCreatedBy)
	assert.Contains(t, cols, ColumnModifiedAt)

	plain := ticketDescriptor()
	plain.Timestamps = false
	plain.OwnerID = false
	cols = FilterableColumns(plain)
	assert.NotContains(t, cols, ColumnOwnerID)
	assert.NotContains(t, cols, ColumnCreatedAt)
}

type testStatus struct {
	name  string
	valid bool
}

func (s testStatus) IsValid() bool  { return s.valid }
func (s testStatus) Number() int    { return 1 }
func (s testStatus) String() string { return s.name }
func (s testStatus) Desc() string   { return s.name }
func (s testStatus) Name() string   { return s.name }

func TestEncodeEnum(t *testing.T) {
	got, err := EncodeEnum(testStatus{name: "open", valid: true})
	require.NoError(t, err)
	assert.Equal(t, "open", got)

	_, err = EncodeEnum(testStatus{name: "bogus", valid: false})
	assert.ErrorContains(t, err, "not valid")

	got, err = EncodeEnum("closed")
	require.NoError(t, err)
	assert.Equal(t, "closed", got)

	_, err = EncodeEnum(42)
	assert.ErrorContains(t, err, "cannot be bound")

	_, err = EncodeEnum(nil)
	assert.Error(t, err)
}
