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
	"strconv"
	"strings"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expression string
	Offset     int
	Message    string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q at offset %d: %s", e.Expression, e.Offset, e.Message)
}

type parser struct {
	src string
	pos int
}

func (p *parser) fail(format string, args ...interface{}) error {
	return &SyntaxError{Expression: p.src, Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

func (p *parser) consume(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *parser) expectEnd() error {
	p.skipSpace()
	if !p.eof() {
		return p.fail("unexpected %q", p.src[p.pos:])
	}
	return nil
}

// parseFallback parses: path ( '||' path )* ( '||' literal )?
func (p *parser) parseFallback() (*fallbackNode, error) {
	result := &fallbackNode{}
	for {
		p.skipSpace()
		if p.peek() == '$' {
			path, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			result.paths = append(result.paths, path)
		} else {
			if len(result.paths) == 0 {
				return nil, p.fail("expression must start with a path")
			}
			literal, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			result.defaultVal = literal
			if p.consume("||") {
				return nil, p.fail("a literal default must be the last operand")
			}
			return result, nil
		}
		if !p.consume("||") {
			return result, nil
		}
	}
}

// parseOr parses: and ( '||' and )*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consume("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

// parseAnd parses: cmp ( '&&' cmp )*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.consume("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

// parseComparison parses: unary ( ( '==' | '!=' ) unary )?
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	negate := false
	switch {
	case p.consume("=="):
	case p.consume("!="):
		negate = true
	default:
		return left, nil
	}
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &compareNode{negate: negate, left: left, right: right}, nil
}

// parseUnary parses: '!' unary | '(' or ')' | path | literal
func (p *parser) parseUnary() (node, error) {
	p.skipSpace()
	switch p.peek() {
	case '!':
		if strings.HasPrefix(p.src[p.pos:], "!=") {
			return nil, p.fail("missing operand before '!='")
		}
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	case '(':
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, p.fail("missing ')'")
		}
		return inner, nil
	case '$':
		return p.parsePath()
	case 0:
		return nil, p.fail("unexpected end of expression")
	default:
		return p.parseLiteral()
	}
}

// parsePath parses: '$' root accessor*
func (p *parser) parsePath() (*pathNode, error) {
	p.skipSpace()
	if p.peek() != '$' {
		return nil, p.fail("expected '$'")
	}
	p.pos++
	if p.eof() || !isIdentStart(p.peek()) {
		return nil, p.fail("expected a root name after '$'")
	}
	path := &pathNode{root: p.readKey()}

	broadcasts := 0
	for !p.eof() {
		switch p.peek() {
		case '.':
			p.pos++
			if p.eof() || !isKeyChar(p.peek()) {
				return nil, p.fail("expected a field name after '.'")
			}
			path.accessors = append(path.accessors, accessor{kind: accessField, key: p.readKey()})
		case '[':
			p.pos++
			acc, err := p.parseBracket()
			if err != nil {
				return nil, err
			}
			if acc.kind == accessBroadcast {
				broadcasts++
				if broadcasts > 1 {
					return nil, p.fail("only one '[*]' is allowed per path")
				}
			}
			path.accessors = append(path.accessors, acc)
		default:
			return path, nil
		}
	}
	return path, nil
}

func (p *parser) parseBracket() (accessor, error) {
	switch {
	case p.peek() == '*':
		p.pos++
		if p.peek() != ']' {
			return accessor{}, p.fail("expected ']' after '*'")
		}
		p.pos++
		return accessor{kind: accessBroadcast}, nil
	case p.peek() == '\'' || p.peek() == '"':
		key, err := p.readQuoted()
		if err != nil {
			return accessor{}, err
		}
		if p.peek() != ']' {
			return accessor{}, p.fail("expected ']' after quoted key")
		}
		p.pos++
		return accessor{kind: accessField, key: key}, nil
	case p.peek() >= '0' && p.peek() <= '9':
		start := p.pos
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		index, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return accessor{}, p.fail("invalid index")
		}
		if p.peek() != ']' {
			return accessor{}, p.fail("expected ']' after index")
		}
		p.pos++
		return accessor{kind: accessIndex, index: index}, nil
	default:
		return accessor{}, p.fail("expected an index, '*' or a quoted key inside '[]'")
	}
}

func (p *parser) readKey() string {
	start := p.pos
	for !p.eof() && isKeyChar(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) readQuoted() (string, error) {
	quote := p.peek()
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		switch c {
		case quote:
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", p.fail("unterminated escape")
			}
			escaped := p.peek()
			p.pos++
			switch escaped {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(escaped)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", p.fail("unterminated string literal")
}

// parseLiteral parses a quoted string, a number, true, false or null.
func (p *parser) parseLiteral() (*literalNode, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '\'' || c == '"':
		s, err := p.readQuoted()
		if err != nil {
			return nil, err
		}
		return &literalNode{value: value.String(s)}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for !p.eof() && strings.IndexByte("0123456789.eE+-", p.peek()) >= 0 {
			p.pos++
		}
		n, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			p.pos = start
			return nil, p.fail("invalid number literal")
		}
		return &literalNode{value: value.Number(n)}, nil
	case isIdentStart(c):
		start := p.pos
		word := p.readKey()
		switch word {
		case "true":
			return &literalNode{value: value.Bool(true)}, nil
		case "false":
			return &literalNode{value: value.Bool(false)}, nil
		case "null":
			return &literalNode{value: value.Null}, nil
		}
		p.pos = start
		return nil, p.fail("unknown literal %q; quote string literals", word)
	case c == 0:
		return nil, p.fail("unexpected end of expression")
	default:
		return nil, p.fail("unexpected character %q", string(c))
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKeyChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}
