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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	yaml "gopkg.in/yaml.v3"
)

type ValueTestSuite struct {
	suite.Suite
}

func TestValueSuite(t *testing.T) {
	suite.Run(t, new(ValueTestSuite))
}

func (suite *ValueTestSuite) TestJSONRoundTripKeepsKeyOrder() {
	doc := `{"zeta":1,"alpha":{"y":true,"x":null},"list":[3,"a",{"b":2}]}`

	parsed, err := FromJSON([]byte(doc))
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), KindMapping, parsed.Kind())
	assert.Equal(suite.T(), []string{"zeta", "alpha", "list"}, parsed.Keys())

	encoded, err := json.Marshal(parsed)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), doc, string(encoded))
}

func (suite *ValueTestSuite) TestFromJSONInvalid() {
	_, err := FromJSON([]byte(`{"a":`))
	assert.Error(suite.T(), err)
}

func (suite *ValueTestSuite) TestUnmarshalJSON() {
	var v Value
	require.NoError(suite.T(), json.Unmarshal([]byte(`{"b":1,"a":2}`), &v))
	assert.Equal(suite.T(), []string{"b", "a"}, v.Keys())
}

func (suite *ValueTestSuite) TestMappingBuilderReplaceKeepsPosition() {
	v := MappingOf(
		Entry{Key: "first", Value: Int(1)},
		Entry{Key: "second", Value: Int(2)},
		Entry{Key: "first", Value: Int(3)},
	)

	assert.Equal(suite.T(), []string{"first", "second"}, v.Keys())
	first, ok := v.Get("first")
	assert.True(suite.T(), ok)
	assert.True(suite.T(), first.Equal(Int(3)))
}

func (suite *ValueTestSuite) TestSequenceIsCopied() {
	items := []Value{Int(1), Int(2)}
	seq := Sequence(items...)
	items[0] = Int(99)

	first, ok := seq.Index(0)
	assert.True(suite.T(), ok)
	assert.True(suite.T(), first.Equal(Int(1)))

	_, ok = seq.Index(5)
	assert.False(suite.T(), ok)
}

func (suite *ValueTestSuite) TestTruthy() {
	testCases := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"Null", Null, false},
		{"False", Bool(false), false},
		{"True", Bool(true), true},
		{"Zero", Int(0), false},
		{"NonZero", Number(0.5), true},
		{"EmptyString", String(""), false},
		{"String", String("x"), true},
		{"EmptySequence", Sequence(), false},
		{"Sequence", Sequence(Null), true},
		{"EmptyMapping", MappingOf(), false},
		{"Mapping", MappingOf(Entry{Key: "a", Value: Null}), true},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.value.Truthy())
		})
	}
}

func (suite *ValueTestSuite) TestEqual() {
	a := MappingOf(Entry{Key: "x", Value: Int(1)}, Entry{Key: "y", Value: Sequence(String("s"))})
	b := MappingOf(Entry{Key: "y", Value: Sequence(String("s"))}, Entry{Key: "x", Value: Int(1)})

	assert.True(suite.T(), a.Equal(b))
	assert.False(suite.T(), a.Equal(Int(1)))
	assert.False(suite.T(), Sequence(Int(1)).Equal(Sequence(Int(1), Int(2))))
	assert.True(suite.T(), Null.Equal(Value{}))
}

func (suite *ValueTestSuite) TestFromGo() {
	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	v := FromGo(map[string]interface{}{
		"b":     []interface{}{1, "two", nil},
		"a":     int64(5),
		"bytes": []byte("raw"),
		"when":  when,
		"flag":  true,
		"tags":  []string{"x", "y"},
	})

	assert.Equal(suite.T(), []string{"a", "b", "bytes", "flag", "tags", "when"}, v.Keys())

	bytesValue, _ := v.Get("bytes")
	s, ok := bytesValue.AsString()
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "raw", s)

	whenValue, _ := v.Get("when")
	s, _ = whenValue.AsString()
	assert.Equal(suite.T(), "2025-01-02T03:04:05Z", s)

	tags, _ := v.Get("tags")
	assert.Equal(suite.T(), 2, tags.Len())

	var nilPtr *int
	assert.True(suite.T(), FromGo(nilPtr).IsNull())
}

func (suite *ValueTestSuite) TestFromYAMLNodeKeepsOrder() {
	var node yaml.Node
	require.NoError(suite.T(), yaml.Unmarshal([]byte("name: Jo\nage: 42\nscores: [1.5, 2]\nactive: true\nnothing: null\n"), &node))

	v, err := FromYAMLNode(&node)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), []string{"name", "age", "scores", "active", "nothing"}, v.Keys())
	age, _ := v.Get("age")
	n, ok := age.AsNumber()
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), float64(42), n)

	nothing, found := v.Get("nothing")
	assert.True(suite.T(), found)
	assert.True(suite.T(), nothing.IsNull())
}

func (suite *ValueTestSuite) TestInterface() {
	v := MappingOf(Entry{Key: "a", Value: Sequence(Int(1), Bool(true), Null)})
	assert.Equal(suite.T(), map[string]interface{}{"a": []interface{}{float64(1), true, nil}}, v.Interface())
}

func (suite *ValueTestSuite) TestLookupStates() {
	assert.Equal(suite.T(), StateMissing, Missing().State())
	assert.True(suite.T(), Missing().IsMissing())
	assert.False(suite.T(), Missing().HasValue())

	nullLookup := Present(Null)
	assert.Equal(suite.T(), StateNull, nullLookup.State())
	assert.True(suite.T(), nullLookup.IsNull())
	assert.False(suite.T(), nullLookup.IsMissing())

	present := Present(String("x"))
	assert.Equal(suite.T(), StatePresent, present.State())
	v, found := present.Found()
	assert.True(suite.T(), found)
	assert.True(suite.T(), v.Equal(String("x")))
}

func (suite *ValueTestSuite) TestStringRendersJSON() {
	assert.Equal(suite.T(), `{"a":[1,"b"]}`, MappingOf(Entry{Key: "a", Value: Sequence(Int(1), String("b"))}).String())
	assert.Equal(suite.T(), "null", Null.String())
	assert.Equal(suite.T(), "mapping", KindMapping.String())
}
