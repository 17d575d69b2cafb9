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
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FromGo converts a native Go value into a Value. Maps without an intrinsic order
// are converted with their keys sorted.
func FromGo(in interface{}) Value {
	switch typed := in.(type) {
	case nil:
		return Null
	case Value:
		return typed
	case bool:
		return Bool(typed)
	case string:
		return String(typed)
	case []byte:
		return String(string(typed))
	case int:
		return Int(int64(typed))
	case int8:
		return Int(int64(typed))
	case int16:
		return Int(int64(typed))
	case int32:
		return Int(int64(typed))
	case int64:
		return Int(typed)
	case uint:
		return Number(float64(typed))
	case uint8:
		return Number(float64(typed))
	case uint16:
		return Number(float64(typed))
	case uint32:
		return Number(float64(typed))
	case uint64:
		return Number(float64(typed))
	case float32:
		return Number(float64(typed))
	case float64:
		return Number(typed)
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return Number(f)
		}
		return String(typed.String())
	case time.Time:
		return String(typed.UTC().Format(time.RFC3339Nano))
	case []interface{}:
		items := make([]Value, len(typed))
		for i, item := range typed {
			items[i] = FromGo(item)
		}
		return Value{kind: KindSequence, seq: items}
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		builder := NewMappingBuilder(len(keys))
		for _, key := range keys {
			builder.Set(key, FromGo(typed[key]))
		}
		return builder.Build()
	}
	return fromReflect(reflect.ValueOf(in))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = FromGo(rv.Index(i).Interface())
		}
		return Value{kind: KindSequence, seq: items}
	case reflect.Map:
		if rv.IsNil() {
			return Null
		}
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, key)
			byKey[key] = iter.Value()
		}
		sort.Strings(keys)
		builder := NewMappingBuilder(len(keys))
		for _, key := range keys {
			builder.Set(key, FromGo(byKey[key].Interface()))
		}
		return builder.Build()
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.String:
		return String(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float())
	case reflect.Invalid:
		return Null
	}
	return String(fmt.Sprint(rv.Interface()))
}

// FromYAMLNode converts a YAML node into a Value keeping the declared key order.
func FromYAMLNode(node *yaml.Node) (Value, error) {
	if node == nil {
		return Null, nil
	}
	switch node.Kind {
	case 0:
		return Null, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null, nil
		}
		return FromYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(node.Alias)
	case yaml.SequenceNode:
		items := make([]Value, len(node.Content))
		for i, child := range node.Content {
			item, err := FromYAMLNode(child)
			if err != nil {
				return Null, err
			}
			items[i] = item
		}
		return Value{kind: KindSequence, seq: items}, nil
	case yaml.MappingNode:
		builder := NewMappingBuilder(len(node.Content) / 2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			field, err := FromYAMLNode(node.Content[i+1])
			if err != nil {
				return Null, err
			}
			builder.Set(node.Content[i].Value, field)
		}
		return builder.Build(), nil
	case yaml.ScalarNode:
		var scalar interface{}
		if err := node.Decode(&scalar); err != nil {
			return Null, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return FromGo(scalar), nil
	}
	return Null, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
}

// Interface converts the value into native Go types. Mappings become map[string]interface{}
// and lose their key order.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindSequence:
		items := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.Interface()
		}
		return items
	case KindMapping:
		fields := make(map[string]interface{}, len(v.m.keys))
		for key, field := range v.m.fields {
			fields[key] = field.Interface()
		}
		return fields
	default:
		return nil
	}
}
