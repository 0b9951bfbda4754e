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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintUnmarshalScalar(t *testing.T) {
	var c Constraint
	require.NoError(t, json.Unmarshal([]byte(`"open"`), &c))

	assert.Equal(t, OpEq, c.Op)
	assert.Equal(t, []interface{}{"open"}, c.Values)
}

func TestConstraintUnmarshalArray(t *testing.T) {
	var c Constraint
	require.NoError(t, json.Unmarshal([]byte(`["open","closed"]`), &c))

	assert.Equal(t, OpIn, c.Op)
	assert.Equal(t, []interface{}{"open", "closed"}, c.Values)
}

func TestConstraintUnmarshalOperator(t *testing.T) {
	var c Constraint
	require.NoError(t, json.Unmarshal([]byte(`{"$contains":"urgent"}`), &c))

	assert.Equal(t, OpContains, c.Op)
	assert.Equal(t, []interface{}{"urgent"}, c.Values)
}

func TestConstraintUnmarshalOperatorWithArray(t *testing.T) {
	var c Constraint
	require.NoError(t, json.Unmarshal([]byte(`{"$notIn":[1,2]}`), &c))

	assert.Equal(t, OpNotIn, c.Op)
	assert.Len(t, c.Values, 2)
}

func TestConstraintUnmarshalUnknownOperator(t *testing.T) {
	var c Constraint
	err := json.Unmarshal([]byte(`{"$regex":"x"}`), &c)
	assert.ErrorContains(t, err, "unknown filter operator")
}

func TestConstraintUnmarshalMultipleOperators(t *testing.T) {
	var c Constraint
	err := json.Unmarshal([]byte(`{"$gt":1,"$lt":9}`), &c)
	assert.ErrorContains(t, err, "exactly one operator")
}

func TestFilterSetUnmarshalSingleObject(t *testing.T) {
	var fs FilterSet
	require.NoError(t, json.Unmarshal([]byte(`{"status":"open"}`), &fs))

	require.Len(t, fs, 1)
	assert.Equal(t, OpEq, fs[0]["status"].Op)
}

func TestFilterSetUnmarshalArray(t *testing.T) {
	var fs FilterSet
	require.NoError(t, json.Unmarshal([]byte(`[{"status":"open"},{"priority":{"$gte":3}}]`), &fs))

	require.Len(t, fs, 2)
	assert.Equal(t, OpGte, fs[1]["priority"].Op)
}

func TestFilterColumnsSorted(t *testing.T) {
	f := Eq("subject", "a").Where("priority", OpGt, 1).Where("id", OpIn, 1, 2)

	assert.Equal(t, []string{"id", "priority", "subject"}, f.Columns())
}

func TestFiltersSkipsNil(t *testing.T) {
	fs := Filters(Eq("a", 1), nil, Eq("b", 2))

	assert.Len(t, fs, 2)
	assert.False(t, fs.IsEmpty())
}

func TestFilterSetIsEmpty(t *testing.T) {
	assert.True(t, FilterSet{}.IsEmpty())
	assert.True(t, FilterSet{Filter{}}.IsEmpty())
	assert.False(t, Filters(Eq("a", 1)).IsEmpty())
}
