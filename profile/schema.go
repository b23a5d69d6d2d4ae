// Copyright 2022 RelationalAI, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package profile

import (
	"strconv"
	"strings"
)

// Field separator used by profile data files.
const Separator = "@"

// Declared field types. Anything other than TypeInteger decodes as a string.
const (
	TypeInteger = "integer"
	TypeString  = "string"
)

type Field struct {
	Label   string `json:"label" yaml:"label"`
	Type    string `json:"type" yaml:"type"`
	Key     bool   `json:"key,omitempty" yaml:"key,omitempty"`
	Partial bool   `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// A decoded data line, field label to value. Values are int for integer
// fields and string otherwise.
type Record map[string]interface{}

// Table is the schema of one profile table: its fields in declaration order.
type Table struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
	index  map[string]int
}

func NewTable(name string) *Table {
	return &Table{Name: name, index: map[string]int{}}
}

// Adds a field, answers false if the label is already declared.
func (t *Table) add(f Field) bool {
	if _, ok := t.index[f.Label]; ok {
		return false
	}
	t.index[f.Label] = len(t.Fields)
	t.Fields = append(t.Fields, f)
	return true
}

// Returns the named field.
func (t *Table) Field(label string) (Field, bool) {
	i, ok := t.index[label]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// Returns the labels of the key fields, in declaration order.
func (t *Table) Keys() []string {
	var result []string
	for _, f := range t.Fields {
		if f.Key {
			result = append(result, f.Label)
		}
	}
	return result
}

// Returns the labels of the partial fields, in declaration order.
func (t *Table) Partials() []string {
	var result []string
	for _, f := range t.Fields {
		if f.Partial {
			result = append(result, f.Label)
		}
	}
	return result
}

// Decode splits a data line on the field separator and assigns the parts to
// the declared fields positionally. Integer fields are converted, the rest
// are kept verbatim.
func (t *Table) Decode(line string) (Record, error) {
	parts := strings.Split(line, Separator)
	if len(parts) != len(t.Fields) {
		return nil, &DecodeError{
			Table:  t.Name,
			Reason: "expected " + strconv.Itoa(len(t.Fields)) + " fields, got " + strconv.Itoa(len(parts)),
		}
	}
	result := make(Record, len(parts))
	for i, f := range t.Fields {
		if f.Type != TypeInteger {
			result[f.Label] = parts[i]
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return nil, &DecodeError{
				Table:  t.Name,
				Reason: "field '" + f.Label + "': bad integer '" + parts[i] + "'",
			}
		}
		result[f.Label] = n
	}
	return result, nil
}
