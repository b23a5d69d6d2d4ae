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

package grid

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Abbreviations used in configuration strings, mapped to the parameter
// names they stand for. Abbreviations not listed here are their own name.
var abbreviations = map[string]string{
	"GP":  "grandparenting",
	"PT":  "use-preterminal-types-p",
	"LEX": "lexicalization-p",
	"CW":  "constituent-weight",
	"AE":  "active-edges-p",
	"NS":  "ngram-size",
	"NT":  "ngram-tag",
	"NB":  "ngram-back-off-p",
	"LM":  "lm-p",
	"RS":  "random-sample-size",
	"RT":  "relative-tolerance",
	"VA":  "variance",
}

// Returns the parameter name for the given abbreviation.
func Expand(abbrev string) string {
	if name, ok := abbreviations[abbrev]; ok {
		return name
	}
	return abbrev
}

type fieldKind int

const (
	valued fieldKind = iota
	flag
	fixed
)

// The serialized field order. It does not depend on which parameters a
// configuration actually has.
var layout = []struct {
	abbrev string
	kind   fieldKind
	text   string
}{
	{abbrev: "GP"},
	{abbrev: "PT", kind: flag},
	{abbrev: "LEX", kind: flag},
	{abbrev: "CW"},
	{abbrev: "AE", kind: flag},
	{abbrev: "NS"},
	{abbrev: "NT"},
	{abbrev: "NB", kind: flag},
	{abbrev: "LM"},
	{abbrev: "FT", kind: fixed, text: ":::1"},
	{abbrev: "RS"},
	{abbrev: "MM"},
	{abbrev: "MI"},
	{abbrev: "RT"},
	{abbrev: "AT"},
	{abbrev: "VA"},
	{abbrev: "PC"},
}

var (
	reName   = regexp.MustCompile(`^\[([^\[\]]*)\]$`)
	reFT     = regexp.MustCompile(`^FT\[.*\]$`)
	reValued = regexp.MustCompile(`^([A-Za-z][\w-]*)\[(.*)\]$`)
	reFlag   = regexp.MustCompile(`^([+-])([A-Za-z][\w-]*)$`)
)

// Configuration is one grid point: an experiment name and the value of
// every parameter. Its string form names the profile directory.
type Configuration struct {
	Name   string
	params map[string]Value
}

func NewConfiguration(name string, params map[string]Value) *Configuration {
	c := &Configuration{Name: name, params: map[string]Value{}}
	for k, v := range params {
		c.params[k] = normalizeValue(v)
	}
	return c
}

// ParseConfiguration decodes a configuration string such as
//
//	[jhpstg] GP[2] +PT -LEX NT[type] RT[1.0e-8]
//
// FT[...] tokens are accepted and ignored.
func ParseConfiguration(s string) (*Configuration, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "empty configuration string")
	}
	m := reName.FindStringSubmatch(tokens[0])
	if m == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid configuration prefix '%s'", tokens[0])
	}
	result := NewConfiguration(m[1], nil)
	for _, token := range tokens[1:] {
		if reFT.MatchString(token) {
			continue
		}
		if m := reValued.FindStringSubmatch(token); m != nil {
			result.params[Expand(m[1])] = ParseValue(m[2])
			continue
		}
		if m := reFlag.FindStringSubmatch(token); m != nil {
			result.params[Expand(m[2])] = m[1] == "+"
			continue
		}
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid configuration field '%s'", token)
	}
	return result, nil
}

// ConfigurationFromRanges builds the configuration of a single grid point.
// Every parameter must have exactly one value.
func ConfigurationFromRanges(name string, r *Ranges) (*Configuration, error) {
	result := NewConfiguration(name, nil)
	for _, p := range r.Names() {
		values := r.values[p]
		if len(values) != 1 {
			return nil, errors.Wrapf(ErrInvalidArgument,
				"parameter '%s' has %d values, expected 1", p, len(values))
		}
		result.params[p] = values[0]
	}
	return result, nil
}

// Returns the value of the named parameter.
func (c *Configuration) Get(name string) (Value, bool) {
	v, ok := c.params[name]
	return v, ok
}

// Returns a copy of the parameter values.
func (c *Configuration) Parameters() map[string]Value {
	result := make(map[string]Value, len(c.params))
	for k, v := range c.params {
		result[k] = v
	}
	return result
}

// Returns the sorted parameter names.
func (c *Configuration) ParameterNames() []string {
	result := make([]string, 0, len(c.params))
	for k := range c.params {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Returns single-value ranges for this configuration.
func (c *Configuration) Ranges() *Ranges {
	result := NewRanges()
	for k, v := range c.params {
		result.values[k] = []Value{v}
	}
	return result
}

// String renders the canonical configuration string, always in the fixed
// field order. Missing flags render as '-', missing values as empty
// brackets.
func (c *Configuration) String() string {
	parts := []string{"[" + c.Name + "]"}
	for _, f := range layout {
		switch f.kind {
		case fixed:
			parts = append(parts, f.abbrev+"["+f.text+"]")
		case flag:
			sign := "-"
			if truthy(c.params[Expand(f.abbrev)]) {
				sign = "+"
			}
			parts = append(parts, sign+f.abbrev)
		default:
			parts = append(parts, f.abbrev+"["+formatBracketed(c.params[Expand(f.abbrev)])+"]")
		}
	}
	return strings.Join(parts, " ")
}
