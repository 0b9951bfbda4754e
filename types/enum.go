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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum is the contract domain enum types satisfy. Columns a descriptor
// lists in EnumColumns carry values of such types; the repository encodes
// them through their Name before binding.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// EncodeEnum converts a value bound to an enum-typed column into its wire
// representation. BaseEnum values encode as their Name, plain strings pass
// through, and fmt.Stringer values fall back to String. Anything else is
// rejected so a bad binding fails before the statement reaches the backend.
func EncodeEnum(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("enum column value is nil")
	case BaseEnum:
		if !v.IsValid() {
			return "", fmt.Errorf("enum value %q is not valid", v.Name())
		}
		return v.Name(), nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("value of type %T cannot be bound to an enum column", value)
	}
}
