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

package expression

import (
	"fmt"
	"sort"

	yaml "gopkg.in/yaml.v3"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// TemplateError reports an invalid expression inside a template together with its location.
type TemplateError struct {
	Path string
	Line int
	Err  error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

type templateNode interface {
	render(scope Scope) value.Lookup
	collectRoots(roots map[string]struct{})
}

// Template is a compiled nested structure whose string leaves may be expressions.
type Template struct {
	root templateNode
}

// CompileTemplate compiles a YAML node. Strings starting with '$' become expressions,
// every other scalar is a literal.
func CompileTemplate(node *yaml.Node) (*Template, error) {
	root, err := compileYAMLNode(node, "$")
	if err != nil {
		return nil, err
	}
	return &Template{root: root}, nil
}

// CompileTemplateValue compiles an already decoded value.
func CompileTemplateValue(v value.Value) (*Template, error) {
	root, err := compileValue(v, "$")
	if err != nil {
		return nil, err
	}
	return &Template{root: root}, nil
}

// Render evaluates the template. Mapping fields resolving to missing are omitted and
// sequence elements resolving to missing become null.
func (t *Template) Render(scope Scope) value.Lookup {
	return t.root.render(scope)
}

// Roots returns the sorted set of root selectors referenced anywhere in the template.
func (t *Template) Roots() []string {
	set := make(map[string]struct{})
	t.root.collectRoots(set)
	roots := make([]string, 0, len(set))
	for root := range set {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

func compileYAMLNode(node *yaml.Node, path string) (templateNode, error) {
	if node == nil {
		return &literalTemplate{value: value.Null}, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return &literalTemplate{value: value.Null}, nil
		}
		return compileYAMLNode(node.Content[0], path)
	case yaml.AliasNode:
		return compileYAMLNode(node.Alias, path)
	case yaml.MappingNode:
		mapping := &mappingTemplate{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			field, err := compileYAMLNode(node.Content[i+1], path+"."+key)
			if err != nil {
				return nil, err
			}
			mapping.keys = append(mapping.keys, key)
			mapping.fields = append(mapping.fields, field)
		}
		return mapping, nil
	case yaml.SequenceNode:
		sequence := &sequenceTemplate{}
		for i, child := range node.Content {
			item, err := compileYAMLNode(child, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			sequence.items = append(sequence.items, item)
		}
		return sequence, nil
	case yaml.ScalarNode:
		if node.Tag == "!!str" || node.Style != 0 {
			return compileString(node.Value, path, node.Line)
		}
		scalar, err := value.FromYAMLNode(node)
		if err != nil {
			return nil, &TemplateError{Path: path, Line: node.Line, Err: err}
		}
		return &literalTemplate{value: scalar}, nil
	}
	return nil, &TemplateError{Path: path, Line: node.Line, Err: fmt.Errorf("unsupported YAML node kind %d", node.Kind)}
}

func compileValue(v value.Value, path string) (templateNode, error) {
	switch v.Kind() {
	case value.KindMapping:
		mapping := &mappingTemplate{}
		for _, entry := range v.Entries() {
			field, err := compileValue(entry.Value, path+"."+entry.Key)
			if err != nil {
				return nil, err
			}
			mapping.keys = append(mapping.keys, entry.Key)
			mapping.fields = append(mapping.fields, field)
		}
		return mapping, nil
	case value.KindSequence:
		sequence := &sequenceTemplate{}
		for i, item := range v.Items() {
			compiled, err := compileValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			sequence.items = append(sequence.items, compiled)
		}
		return sequence, nil
	case value.KindString:
		s, _ := v.AsString()
		return compileString(s, path, 0)
	default:
		return &literalTemplate{value: v}, nil
	}
}

func compileString(s, path string, line int) (templateNode, error) {
	if !IsExpression(s) {
		return &literalTemplate{value: value.String(UnescapeLiteral(s))}, nil
	}
	expr, err := Compile(s)
	if err != nil {
		return nil, &TemplateError{Path: path, Line: line, Err: err}
	}
	return &expressionTemplate{expr: expr}, nil
}

type literalTemplate struct {
	value value.Value
}

func (l *literalTemplate) render(Scope) value.Lookup {
	return value.Present(l.value)
}

func (l *literalTemplate) collectRoots(map[string]struct{}) {}

type expressionTemplate struct {
	expr *Expression
}

func (e *expressionTemplate) render(scope Scope) value.Lookup {
	return e.expr.Resolve(scope)
}

func (e *expressionTemplate) collectRoots(roots map[string]struct{}) {
	e.expr.root.collectRoots(roots)
}

type mappingTemplate struct {
	keys   []string
	fields []templateNode
}

func (m *mappingTemplate) render(scope Scope) value.Lookup {
	builder := value.NewMappingBuilder(len(m.keys))
	for i, key := range m.keys {
		field := m.fields[i].render(scope)
		if field.IsMissing() {
			continue
		}
		builder.Set(key, field.Value())
	}
	return value.Present(builder.Build())
}

func (m *mappingTemplate) collectRoots(roots map[string]struct{}) {
	for _, field := range m.fields {
		field.collectRoots(roots)
	}
}

type sequenceTemplate struct {
	items []templateNode
}

func (s *sequenceTemplate) render(scope Scope) value.Lookup {
	items := make([]value.Value, len(s.items))
	for i, item := range s.items {
		items[i] = item.render(scope).Value()
	}
	return value.Present(value.Sequence(items...))
}

func (s *sequenceTemplate) collectRoots(roots map[string]struct{}) {
	for _, item := range s.items {
		item.collectRoots(roots)
	}
}
