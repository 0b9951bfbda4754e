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
	"fmt"
	"sort"
)

// Op is a per-column filter operator.
type Op string

const (
	OpEq         Op = "$eq"
	OpNot        Op = "$not"
	OpIn         Op = "$in"
	OpNotIn      Op = "$notIn"
	OpContains   Op = "$contains"
	OpStartsWith Op = "$startsWith"
	OpEndsWith   Op = "$endsWith"
	OpGt         Op = "$gt"
	OpGte        Op = "$gte"
	OpLt         Op = "$lt"
	OpLte        Op = "$lte"
	OpNull       Op = "$null"
)

var knownOps = map[Op]struct{}{
	OpEq: {}, OpNot: {}, OpIn: {}, OpNotIn: {},
	OpContains: {}, OpStartsWith: {}, OpEndsWith: {},
	OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {}, OpNull: {},
}

// Constraint is one operator applied to one column with one or more values.
// Multiple values under OpEq behave like OpIn: the row matches any of them.
type Constraint struct {
	Op     Op
	Values []interface{}
}

// UnmarshalJSON accepts three shapes for a constraint:
//
//	"value"                  equality
//	["a", "b"]               any-of
//	{"$contains": "substr"}  explicit operator
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case []interface{}:
		c.Op = OpIn
		c.Values = v
	case map[string]interface{}:
		if len(v) != 1 {
			return fmt.Errorf("filter constraint must hold exactly one operator, got %d", len(v))
		}
		for op, val := range v {
			if _, ok := knownOps[Op(op)]; !ok {
				return fmt.Errorf("unknown filter operator %q", op)
			}
			c.Op = Op(op)
			if vals, ok := val.([]interface{}); ok {
				c.Values = vals
			} else {
				c.Values = []interface{}{val}
			}
		}
	default:
		c.Op = OpEq
		c.Values = []interface{}{v}
	}
	return nil
}

// Filter maps column names to constraints. Constraints across columns are
// conjunctions: a row matches the filter when every constraint holds. The
// empty filter matches all rows.
type Filter map[string]Constraint

// Columns returns the constrained column names in sorted order so that
// translation output is stable.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Eq builds a single-column equality filter.
func Eq(column string, value interface{}) Filter {
	return Filter{column: {Op: OpEq, Values: []interface{}{value}}}
}

// Where adds a constraint to the filter and returns it for chaining.
func (f Filter) Where(column string, op Op, values ...interface{}) Filter {
	f[column] = Constraint{Op: op, Values: values}
	return f
}

// FilterSet is a sequence of alternative filters: a row matches the set when
// it matches any one filter. The empty set matches all rows.
type FilterSet []Filter

// UnmarshalJSON accepts either a single filter object or an array of filter
// objects, normalizing both to a sequence.
func (fs *FilterSet) UnmarshalJSON(data []byte) error {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var many []Filter
			if err := json.Unmarshal(data, &many); err != nil {
				return err
			}
			*fs = many
			return nil
		default:
			var one Filter
			if err := json.Unmarshal(data, &one); err != nil {
				return err
			}
			*fs = FilterSet{one}
			return nil
		}
	}
	*fs = nil
	return nil
}

// Filters normalizes zero-or-more filters into a set, skipping nil entries.
func Filters(filters ...Filter) FilterSet {
	fs := make(FilterSet, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return fs
}

// IsEmpty reports whether the set constrains nothing.
func (fs FilterSet) IsEmpty() bool {
	for _, f := range fs {
		if len(f) > 0 {
			return false
		}
	}
	return true
}
