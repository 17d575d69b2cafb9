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

package log

import "time"

// Field represents a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a log field with a string value.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a log field with an int value.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a log field with an int64 value.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a log field with a float64 value.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a log field with a bool value.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a log field with a duration value.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Any creates a log field with an arbitrary value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Error creates a log field for an error under the "error" key.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}
