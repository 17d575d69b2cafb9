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

package planner

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"

	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// applyTransform reshapes a step result before it is stored.
func applyTransform(t *model.Transform, result value.Value) (value.Value, error) {
	switch t.Type {
	case model.TransformSelectFields:
		return selectFields(result, t.Fields), nil
	case model.TransformJSONPath:
		selected, err := jsonpath.Get(t.Expression, result.Interface())
		if err != nil {
			// Paths that select nothing fail with unknown key or index errors.
			return value.Null, nil
		}
		return value.FromGo(selected), nil
	default:
		return value.Null, fmt.Errorf("unsupported transform type %q", t.Type)
	}
}

// selectFields keeps the listed fields of a mapping, or of every mapping in a sequence.
func selectFields(v value.Value, fields []string) value.Value {
	switch v.Kind() {
	case value.KindMapping:
		b := value.NewMappingBuilder(len(fields))
		for _, field := range fields {
			if fv, ok := v.Get(field); ok {
				b.Set(field, fv)
			}
		}
		return b.Build()
	case value.KindSequence:
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, item := range items {
			out[i] = selectFields(item, fields)
		}
		return value.Sequence(out...)
	default:
		return v
	}
}

func validateTransform(t *model.Transform) error {
	switch t.Type {
	case model.TransformSelectFields:
		if len(t.Fields) == 0 {
			return fmt.Errorf("select_fields transform requires fields")
		}
	case model.TransformJSONPath:
		if t.Expression == "" {
			return fmt.Errorf("jsonpath transform requires an expression")
		}
		if _, err := jsonpath.New(t.Expression); err != nil {
			return fmt.Errorf("invalid jsonpath expression %q: %w", t.Expression, err)
		}
	default:
		return fmt.Errorf("unsupported transform type %q", t.Type)
	}
	return nil
}
