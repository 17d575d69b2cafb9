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
	"errors"
	"fmt"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// errTypeMismatch aborts a condition whose comparison operands have incompatible kinds.
var errTypeMismatch = errors.New("type mismatch")

// Scope resolves the root selector of a path.
type Scope interface {
	Lookup(root string) (value.Value, bool)
}

// MapScope is a Scope backed by a plain map.
type MapScope map[string]value.Value

// Lookup returns the value bound to root.
func (s MapScope) Lookup(root string) (value.Value, bool) {
	v, ok := s[root]
	return v, ok
}

type node interface {
	eval(scope Scope) (value.Lookup, error)
	collectRoots(roots map[string]struct{})
}

type accessorKind uint8

const (
	accessField accessorKind = iota
	accessIndex
	accessBroadcast
)

type accessor struct {
	kind  accessorKind
	key   string
	index int
}

type pathNode struct {
	root      string
	accessors []accessor
}

func (p *pathNode) eval(scope Scope) (value.Lookup, error) {
	return p.resolve(scope), nil
}

func (p *pathNode) resolve(scope Scope) value.Lookup {
	root, ok := scope.Lookup(p.root)
	if !ok {
		return value.Missing()
	}
	return walk(root, p.accessors)
}

func (p *pathNode) collectRoots(roots map[string]struct{}) {
	roots[p.root] = struct{}{}
}

// walk applies the accessor chain to current. A broadcast maps the rest of the chain over
// every element and renders missing elements as null so positions are preserved.
func walk(current value.Value, accessors []accessor) value.Lookup {
	for i, acc := range accessors {
		switch acc.kind {
		case accessField:
			switch current.Kind() {
			case value.KindMapping:
				next, ok := current.Get(acc.key)
				if !ok {
					return value.Missing()
				}
				current = next
			case value.KindSequence:
				index, ok := digitsIndex(acc.key)
				if !ok {
					return value.Missing()
				}
				next, ok := current.Index(index)
				if !ok {
					return value.Missing()
				}
				current = next
			default:
				return value.Missing()
			}
		case accessIndex:
			next, ok := current.Index(acc.index)
			if !ok {
				return value.Missing()
			}
			current = next
		case accessBroadcast:
			if current.Kind() != value.KindSequence {
				return value.Missing()
			}
			items := current.Items()
			out := make([]value.Value, len(items))
			for j, item := range items {
				out[j] = walk(item, accessors[i+1:]).Value()
			}
			return value.Present(value.Sequence(out...))
		}
	}
	return value.Present(current)
}

func digitsIndex(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	index := 0
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
		index = index*10 + int(r-'0')
	}
	return index, true
}

type literalNode struct {
	value value.Value
}

func (l *literalNode) eval(Scope) (value.Lookup, error) {
	return value.Present(l.value), nil
}

func (l *literalNode) collectRoots(map[string]struct{}) {}

// fallbackNode is a value expression: paths joined by '||' with an optional trailing default.
type fallbackNode struct {
	paths      []*pathNode
	defaultVal *literalNode
}

func (f *fallbackNode) eval(scope Scope) (value.Lookup, error) {
	sawNull := false
	for _, path := range f.paths {
		result := path.resolve(scope)
		if result.HasValue() {
			return result, nil
		}
		if result.IsNull() {
			sawNull = true
		}
	}
	if f.defaultVal != nil {
		return value.Present(f.defaultVal.value), nil
	}
	if sawNull {
		return value.Present(value.Null), nil
	}
	return value.Missing(), nil
}

func (f *fallbackNode) collectRoots(roots map[string]struct{}) {
	for _, path := range f.paths {
		path.collectRoots(roots)
	}
}

type notNode struct {
	operand node
}

func (n *notNode) eval(scope Scope) (value.Lookup, error) {
	result, err := n.operand.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	return value.Present(value.Bool(!result.Value().Truthy())), nil
}

func (n *notNode) collectRoots(roots map[string]struct{}) {
	n.operand.collectRoots(roots)
}

type andNode struct {
	left, right node
}

func (a *andNode) eval(scope Scope) (value.Lookup, error) {
	left, err := a.left.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	if !left.Value().Truthy() {
		return value.Present(value.Bool(false)), nil
	}
	right, err := a.right.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	return value.Present(value.Bool(right.Value().Truthy())), nil
}

func (a *andNode) collectRoots(roots map[string]struct{}) {
	a.left.collectRoots(roots)
	a.right.collectRoots(roots)
}

// orNode is boolean when its left operand evaluates to a Bool and path fallback otherwise.
type orNode struct {
	left, right node
}

func (o *orNode) eval(scope Scope) (value.Lookup, error) {
	left, err := o.left.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	if b, isBool := left.Value().AsBool(); isBool && !left.IsMissing() {
		if b {
			return value.Present(value.Bool(true)), nil
		}
		right, err := o.right.eval(scope)
		if err != nil {
			return value.Missing(), err
		}
		return value.Present(value.Bool(right.Value().Truthy())), nil
	}
	if left.HasValue() {
		return left, nil
	}
	return o.right.eval(scope)
}

func (o *orNode) collectRoots(roots map[string]struct{}) {
	o.left.collectRoots(roots)
	o.right.collectRoots(roots)
}

type compareNode struct {
	negate      bool
	left, right node
}

func (c *compareNode) eval(scope Scope) (value.Lookup, error) {
	left, err := c.left.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	right, err := c.right.eval(scope)
	if err != nil {
		return value.Missing(), err
	}
	equal, err := compareEqual(left.Value(), right.Value())
	if err != nil {
		return value.Missing(), err
	}
	return value.Present(value.Bool(equal != c.negate)), nil
}

func (c *compareNode) collectRoots(roots map[string]struct{}) {
	c.left.collectRoots(roots)
	c.right.collectRoots(roots)
}

// compareEqual compares two operands. Null is comparable with every kind; any other
// pair of differing kinds is a type mismatch.
func compareEqual(left, right value.Value) (bool, error) {
	if left.IsNull() || right.IsNull() {
		return left.IsNull() && right.IsNull(), nil
	}
	if left.Kind() != right.Kind() {
		return false, fmt.Errorf("%w: cannot compare %s with %s", errTypeMismatch, left.Kind(), right.Kind())
	}
	return left.Equal(right), nil
}
