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
	"fmt"
	"strings"

	"github.com/tomoncle/mole/types"
	"github.com/uptrace/bun"
)

// TranslateFilters renders a filter set into one Bun where-expression and its
// arguments. Filters in the set are alternatives (OR); constraints inside one
// filter are conjunctions (AND). An empty set renders to the empty expression,
// meaning "match all rows".
//
// Every referenced column is checked against the descriptor before anything
// is rendered, so an unknown column fails the whole translation and no
// statement reaches the backend. Values bound to enum columns are encoded
// through their enum names.
func TranslateFilters(d types.Descriptor, fs types.FilterSet) (string, []interface{}, error) {
	var alts []string
	var args []interface{}

	for _, f := range fs {
		if len(f) == 0 {
			continue
		}
		expr, fArgs, err := translateFilter(d, f)
		if err != nil {
			return "", nil, err
		}
		alts = append(alts, expr)
		args = append(args, fArgs...)
	}

	switch len(alts) {
	case 0:
		return "", nil, nil
	case 1:
		return alts[0], args, nil
	default:
		return "(" + strings.Join(alts, ") OR (") + ")", args, nil
	}
}

func translateFilter(d types.Descriptor, f types.Filter) (string, []interface{}, error) {
	filterable := types.FilterableColumns(d)
	enums := make(map[string]struct{}, len(d.EnumColumns()))
	for _, c := range d.EnumColumns() {
		enums[c] = struct{}{}
	}

	var parts []string
	var args []interface{}
	for _, col := range f.Columns() {
		if _, ok := filterable[col]; !ok {
			return "", nil, &UnknownColumnError{Table: d.Table(), Column: col}
		}
		_, isEnum := enums[col]
		expr, cArgs, err := translateConstraint(col, f[col], isEnum)
		if err != nil {
			return "", nil, fmt.Errorf("filter on %s.%s: %w", d.Table(), col, err)
		}
		parts = append(parts, expr)
		args = append(args, cArgs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func translateConstraint(col string, c types.Constraint, isEnum bool) (string, []interface{}, error) {
	values := c.Values
	if isEnum && c.Op != types.OpNull {
		encoded := make([]interface{}, len(values))
		for i, v := range values {
			s, err := types.EncodeEnum(v)
			if err != nil {
				return "", nil, err
			}
			encoded[i] = s
		}
		values = encoded
	}

	ident := bun.Ident(col)

	switch c.Op {
	case types.OpEq, "":
		if len(values) == 0 {
			return "", nil, errNoValues(c.Op)
		}
		if len(values) != 1 {
			// Several equality values behave like an IN list.
			return "? IN (?)", []interface{}{ident, bun.In(values)}, nil
		}
		return "? = ?", []interface{}{ident, values[0]}, nil
	case types.OpNot:
		if len(values) == 0 {
			return "", nil, errNoValues(c.Op)
		}
		if len(values) != 1 {
			return "? NOT IN (?)", []interface{}{ident, bun.In(values)}, nil
		}
		return "? != ?", []interface{}{ident, values[0]}, nil
	case types.OpIn:
		if len(values) == 0 {
			return "", nil, errNoValues(c.Op)
		}
		return "? IN (?)", []interface{}{ident, bun.In(values)}, nil
	case types.OpNotIn:
		if len(values) == 0 {
			return "", nil, errNoValues(c.Op)
		}
		return "? NOT IN (?)", []interface{}{ident, bun.In(values)}, nil
	case types.OpContains:
		pattern, err := likePattern(values, "%", "%")
		if err != nil {
			return "", nil, err
		}
		return "? LIKE ?", []interface{}{ident, pattern}, nil
	case types.OpStartsWith:
		pattern, err := likePattern(values, "", "%")
		if err != nil {
			return "", nil, err
		}
		return "? LIKE ?", []interface{}{ident, pattern}, nil
	case types.OpEndsWith:
		pattern, err := likePattern(values, "%", "")
		if err != nil {
			return "", nil, err
		}
		return "? LIKE ?", []interface{}{ident, pattern}, nil
	case types.OpGt:
		return comparison("? > ?", ident, values)
	case types.OpGte:
		return comparison("? >= ?", ident, values)
	case types.OpLt:
		return comparison("? < ?", ident, values)
	case types.OpLte:
		return comparison("? <= ?", ident, values)
	case types.OpNull:
		isNull, err := singleBool(values)
		if err != nil {
			return "", nil, err
		}
		if isNull {
			return "? IS NULL", []interface{}{ident}, nil
		}
		return "? IS NOT NULL", []interface{}{ident}, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
	}
}

// errNoValues flags a list constraint with nothing in it. Rendering it would
// produce "IN ()", which only fails later at the backend.
func errNoValues(op types.Op) error {
	name := string(op)
	if name == "" {
		name = string(types.OpEq)
	}
	return fmt.Errorf("operator %q expects at least one value", name)
}

func comparison(expr string, ident bun.Ident, values []interface{}) (string, []interface{}, error) {
	if len(values) != 1 {
		return "", nil, fmt.Errorf("comparison operator expects exactly one value, got %d", len(values))
	}
	return expr, []interface{}{ident, values[0]}, nil
}

func likePattern(values []interface{}, prefix, suffix string) (string, error) {
	if len(values) != 1 {
		return "", fmt.Errorf("pattern operator expects exactly one value, got %d", len(values))
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("pattern operator expects a string value, got %T", values[0])
	}
	return prefix + escapeLike(s) + suffix, nil
}

// escapeLike neutralizes LIKE wildcards in a caller-supplied substring so
// $contains matches it literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func singleBool(values []interface{}) (bool, error) {
	if len(values) != 1 {
		return false, fmt.Errorf("null operator expects exactly one value, got %d", len(values))
	}
	b, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("null operator expects a boolean, got %T", values[0])
	}
	return b, nil
}

// orderPart is one rendered ORDER BY term.
type orderPart struct {
	expr string
	args []interface{}
}

// translateOrderBys validates order columns against the descriptor and
// renders them. With no explicit ordering the identifier column ascending is
// used so pages are deterministic.
func translateOrderBys(d types.Descriptor, orderBys []types.OrderBy) ([]orderPart, error) {
	if len(orderBys) == 0 {
		return []orderPart{{expr: "? ASC", args: []interface{}{bun.Ident(d.IDColumn())}}}, nil
	}
	filterable := types.FilterableColumns(d)
	parts := make([]orderPart, 0, len(orderBys))
	for _, ob := range orderBys {
		if _, ok := filterable[ob.Column]; !ok {
			return nil, &UnknownColumnError{Table: d.Table(), Column: ob.Column}
		}
		dir := ob.Direction
		if dir == "" {
			dir = types.Asc
		}
		if dir != types.Asc && dir != types.Desc {
			return nil, fmt.Errorf("invalid order direction %q for column %q", dir, ob.Column)
		}
		parts = append(parts, orderPart{expr: "? " + string(dir), args: []interface{}{bun.Ident(ob.Column)}})
	}
	return parts, nil
}
