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

package adapter

import (
	"fmt"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// Params gives typed access to the rendered parameters of a request. Access failures are
// InvalidInput errors.
type Params struct {
	source    string
	operation string
	v         value.Value
}

// ParamsOf wraps the parameters of a request.
func ParamsOf(req Request) Params {
	return Params{source: req.SourceID, operation: req.Operation, v: req.Params}
}

// Value returns the raw parameter document.
func (p Params) Value() value.Value {
	return p.v
}

// Has reports whether key is present and not null.
func (p Params) Has(key string) bool {
	v, ok := p.v.Get(key)
	return ok && !v.IsNull()
}

// Get returns the value of key.
func (p Params) Get(key string) (value.Value, bool) {
	v, ok := p.v.Get(key)
	if !ok || v.IsNull() {
		return value.Null, false
	}
	return v, true
}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p.Get(key)
	if !ok {
		return "", p.invalid("missing required parameter %q", key)
	}
	s, ok := v.AsString()
	if !ok {
		return "", p.invalid("parameter %q must be a string, got %s", key, v.Kind())
	}
	return s, nil
}

// OptionalString returns a string parameter or def when it is absent.
func (p Params) OptionalString(key, def string) (string, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.String(key)
}

// Scalar returns a required parameter rendered as text. Numbers and booleans are formatted.
func (p Params) Scalar(key string) (string, error) {
	v, ok := p.Get(key)
	if !ok {
		return "", p.invalid("missing required parameter %q", key)
	}
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return s, nil
	case value.KindNumber, value.KindBool:
		return v.String(), nil
	default:
		return "", p.invalid("parameter %q must be a scalar, got %s", key, v.Kind())
	}
}

// Int returns an integer parameter or def when it is absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	n, ok := v.AsNumber()
	if !ok || n != float64(int(n)) {
		return 0, p.invalid("parameter %q must be an integer", key)
	}
	return int(n), nil
}

// Mapping returns a mapping parameter, or an empty mapping when it is absent.
func (p Params) Mapping(key string) (value.Value, error) {
	v, ok := p.Get(key)
	if !ok {
		return value.MappingOf(), nil
	}
	if v.Kind() != value.KindMapping {
		return value.Null, p.invalid("parameter %q must be a mapping, got %s", key, v.Kind())
	}
	return v, nil
}

// Strings returns a parameter holding a string or a sequence of strings.
func (p Params) Strings(key string) ([]string, error) {
	v, ok := p.Get(key)
	if !ok {
		return nil, nil
	}
	if s, ok := v.AsString(); ok {
		return []string{s}, nil
	}
	if v.Kind() != value.KindSequence {
		return nil, p.invalid("parameter %q must be a string or a sequence of strings", key)
	}
	items := v.Items()
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.AsString()
		if !ok {
			return nil, p.invalid("parameter %q must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func (p Params) invalid(format string, args ...interface{}) error {
	return Errorf(ClassInvalidInput, p.source, p.operation, format, args...)
}

// UnsupportedOperation returns the error reported for an operation an adapter does not know.
func UnsupportedOperation(req Request) error {
	return NewError(ClassInvalidInput, req.SourceID, req.Operation,
		fmt.Errorf("unsupported operation %q", req.Operation))
}
