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

// Package value defines the dynamic document model shared by the expression resolver,
// the execution planner and the response assembler.
//
// A Value is an immutable tagged union of Null, Bool, Number, String, Sequence and Mapping.
// Mappings keep the insertion order of their keys so that documents render fields in the
// order they were declared or received.
package value

import (
	"fmt"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNull is the explicit null value.
	KindNull Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindNumber is a numeric value stored as float64.
	KindNumber
	// KindString is a string value.
	KindString
	// KindSequence is an ordered list of values.
	KindSequence
	// KindMapping is an ordered set of string keyed values.
	KindMapping
)

var kindNames = [...]string{"null", "bool", "number", "string", "sequence", "mapping"}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is an immutable dynamically typed document node. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    *mapping
}

type mapping struct {
	keys   []string
	fields map[string]Value
}

// Null is the explicit null value.
var Null = Value{}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// Int returns a numeric value for an integer.
func Int(i int64) Value {
	return Value{kind: KindNumber, n: float64(i)}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Sequence returns a sequence holding a copy of the given items.
func Sequence(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindSequence, seq: copied}
}

// Entry is a key and value pair used to build mappings.
type Entry struct {
	Key   string
	Value Value
}

// MappingOf returns a mapping holding the given entries in order.
// A repeated key keeps its first position and takes the last value.
func MappingOf(entries ...Entry) Value {
	builder := NewMappingBuilder(len(entries))
	for _, entry := range entries {
		builder.Set(entry.Key, entry.Value)
	}
	return builder.Build()
}

// MappingBuilder accumulates ordered mapping entries.
type MappingBuilder struct {
	keys   []string
	fields map[string]Value
}

// NewMappingBuilder creates a builder with room for the given number of entries.
func NewMappingBuilder(capacity int) *MappingBuilder {
	return &MappingBuilder{
		keys:   make([]string, 0, capacity),
		fields: make(map[string]Value, capacity),
	}
}

// Set adds or replaces an entry. A replaced entry keeps its original position.
func (b *MappingBuilder) Set(key string, v Value) *MappingBuilder {
	if _, exists := b.fields[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.fields[key] = v
	return b
}

// Len returns the number of entries added so far.
func (b *MappingBuilder) Len() int {
	return len(b.keys)
}

// Build returns the mapping. The builder must not be used afterwards.
func (b *MappingBuilder) Build() Value {
	return Value{kind: KindMapping, m: &mapping{keys: b.keys, fields: b.fields}}
}

// Kind returns the variant held by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean held by the value.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the number held by the value.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string held by the value.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Len returns the number of elements of a sequence or entries of a mapping, and zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.m.keys)
	default:
		return 0
	}
}

// Index returns the element at position i of a sequence.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Null, false
	}
	return v.seq[i], true
}

// Items returns a copy of the elements of a sequence.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	items := make([]Value, len(v.seq))
	copy(items, v.seq)
	return items
}

// Get returns the value stored under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Null, false
	}
	field, ok := v.m.fields[key]
	return field, ok
}

// Keys returns the keys of a mapping in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, len(v.m.keys))
	copy(keys, v.m.keys)
	return keys
}

// Entries returns the entries of a mapping in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != KindMapping {
		return nil
	}
	entries := make([]Entry, len(v.m.keys))
	for i, key := range v.m.keys {
		entries[i] = Entry{Key: key, Value: v.m.fields[key]}
	}
	return entries
}

// Truthy reports the truthiness of the value. Null, false, zero, the empty string
// and empty collections are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindSequence:
		return len(v.seq) > 0
	case KindMapping:
		return len(v.m.keys) > 0
	default:
		return false
	}
}

// Equal reports whether two values are deeply equal. Mapping equality ignores key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.m.keys) != len(other.m.keys) {
			return false
		}
		for key, field := range v.m.fields {
			otherField, ok := other.m.fields[key]
			if !ok || !field.Equal(otherField) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value as compact JSON for logging.
func (v Value) String() string {
	var sb strings.Builder
	if err := v.writeJSON(&sb); err != nil {
		return fmt.Sprintf("<invalid %s>", v.kind)
	}
	return sb.String()
}
