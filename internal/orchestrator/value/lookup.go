/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package value

// State distinguishes a reference that resolved to nothing from one that resolved to null.
type State uint8

const (
	// StateMissing means the referenced field, index or step does not exist.
	StateMissing State = iota
	// StateNull means the reference resolved to an explicit null.
	StateNull
	// StatePresent means the reference resolved to a non-null value.
	StatePresent
)

// Lookup is the three-state result of resolving a reference.
type Lookup struct {
	value   Value
	present bool
}

// Missing returns a lookup that resolved to nothing.
func Missing() Lookup {
	return Lookup{}
}

// Present returns a lookup that resolved to v. A null v yields StateNull.
func Present(v Value) Lookup {
	return Lookup{value: v, present: true}
}

// State returns the state of the lookup.
func (l Lookup) State() State {
	switch {
	case !l.present:
		return StateMissing
	case l.value.IsNull():
		return StateNull
	default:
		return StatePresent
	}
}

// IsMissing reports whether the lookup resolved to nothing.
func (l Lookup) IsMissing() bool {
	return !l.present
}

// IsNull reports whether the lookup resolved to an explicit null.
func (l Lookup) IsNull() bool {
	return l.present && l.value.IsNull()
}

// HasValue reports whether the lookup resolved to a non-null value.
func (l Lookup) HasValue() bool {
	return l.present && !l.value.IsNull()
}

// Value returns the resolved value, or Null when missing.
func (l Lookup) Value() Value {
	return l.value
}

// Found returns the resolved value and whether the lookup was not missing.
func (l Lookup) Found() (Value, bool) {
	return l.value, l.present
}
