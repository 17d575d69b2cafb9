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

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// jsonWriter is satisfied by strings.Builder and bytes.Buffer.
type jsonWriter interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteByte(c byte) error
}

// MarshalJSON renders the value as JSON keeping mapping key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON document into the value keeping mapping key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(w jsonWriter) error {
	switch v.kind {
	case KindNull:
		_, err := w.WriteString("null")
		return err
	case KindBool:
		if v.b {
			_, err := w.WriteString("true")
			return err
		}
		_, err := w.WriteString("false")
		return err
	case KindNumber:
		encoded, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		_, err = w.Write(encoded)
		return err
	case KindString:
		return writeJSONString(w, v.s)
	case KindSequence:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i, item := range v.seq {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := item.writeJSON(w); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case KindMapping:
		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i, key := range v.m.keys {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := writeJSONString(w, key); err != nil {
				return err
			}
			if err := w.WriteByte(':'); err != nil {
				return err
			}
			if err := v.m.fields[key].writeJSON(w); err != nil {
				return err
			}
		}
		return w.WriteByte('}')
	}
	return errors.New("unknown value kind")
}

func writeJSONString(w jsonWriter, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// FromJSON parses a JSON document keeping the key order of every object.
func FromJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Null, errors.New("invalid JSON document")
	}
	return FromGJSON(gjson.ParseBytes(data)), nil
}

// FromGJSON converts a gjson result into a value keeping the key order of every object.
func FromGJSON(result gjson.Result) Value {
	switch result.Type {
	case gjson.Null:
		return Null
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(result.Num)
	case gjson.String:
		return String(result.Str)
	case gjson.JSON:
		if result.IsArray() {
			items := make([]Value, 0)
			result.ForEach(func(_, element gjson.Result) bool {
				items = append(items, FromGJSON(element))
				return true
			})
			return Value{kind: KindSequence, seq: items}
		}
		if result.IsObject() {
			builder := NewMappingBuilder(0)
			result.ForEach(func(key, element gjson.Result) bool {
				builder.Set(key.String(), FromGJSON(element))
				return true
			})
			return builder.Build()
		}
	}
	return Null
}
