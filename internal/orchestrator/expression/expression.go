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

// Package expression implements the reference expression language used by endpoint
// definitions to read request data and the results of earlier steps.
//
// A value expression is one or more '$' paths joined by '||' with an optional trailing
// literal default, for example "$customer.name || $profile.name || 'unknown'". A path
// starts at a root (the request or a step name) followed by '.field', '[n]', '["key"]'
// or a single '[*]' broadcast. Conditions additionally support '==', '!=', '&&', '!'
// and parentheses.
package expression

import (
	"sort"
	"strings"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// RequestRoot is the root selector bound to the inbound request.
const RequestRoot = "request"

// IsExpression reports whether s is a reference expression rather than a literal string.
// A leading "$$" escapes a literal dollar sign.
func IsExpression(s string) bool {
	return strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "$$")
}

// UnescapeLiteral removes the escape of a literal string starting with "$$".
func UnescapeLiteral(s string) string {
	if strings.HasPrefix(s, "$$") {
		return s[1:]
	}
	return s
}

// Expression is a compiled value expression. It is immutable and safe for concurrent use.
type Expression struct {
	source string
	root   *fallbackNode
}

// Compile parses a value expression.
func Compile(text string) (*Expression, error) {
	p := &parser{src: text}
	root, err := p.parseFallback()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return &Expression{source: text, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string) *Expression {
	expr, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return expr
}

// Resolve evaluates the expression against scope.
func (e *Expression) Resolve(scope Scope) value.Lookup {
	result, _ := e.root.eval(scope)
	return result
}

// Roots returns the sorted set of root selectors the expression references.
func (e *Expression) Roots() []string {
	return sortedRoots(e.root)
}

// String returns the source text of the expression.
func (e *Expression) String() string {
	return e.source
}

// Condition is a compiled boolean expression.
type Condition struct {
	source string
	root   node
}

// CompileCondition parses a condition expression.
func CompileCondition(text string) (*Condition, error) {
	p := &parser{src: text}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return &Condition{source: text, root: root}, nil
}

// Evaluate reports whether the condition holds. A comparison between incompatible kinds
// makes the whole condition false.
func (c *Condition) Evaluate(scope Scope) bool {
	result, err := c.root.eval(scope)
	if err != nil {
		return false
	}
	return result.Value().Truthy()
}

// Roots returns the sorted set of root selectors the condition references.
func (c *Condition) Roots() []string {
	return sortedRoots(c.root)
}

// String returns the source text of the condition.
func (c *Condition) String() string {
	return c.source
}

func sortedRoots(n node) []string {
	set := make(map[string]struct{})
	n.collectRoots(set)
	roots := make([]string, 0, len(set))
	for root := range set {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
