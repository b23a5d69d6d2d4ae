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
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is wrapped by errors caused by bad caller input, such
// as malformed configuration strings or unknown parameter names.
var ErrInvalidArgument = errors.New("invalid argument")

// Parameters used by the maximum-entropy trainer. They are left out of
// generated descriptor text by default.
var MaxentParameters = []string{"MM", "MI", "relative-tolerance", "AT", "variance", "PC"}

// Ranges maps parameter names to the list of values each may take.
type Ranges struct {
	values map[string][]Value
}

func NewRanges() *Ranges {
	return &Ranges{values: map[string][]Value{}}
}

// FromMap builds ranges from a generic mapping. Slice values become value
// lists, anything else becomes a single-value list.
func FromMap(m map[string]interface{}) *Ranges {
	result := NewRanges()
	for name, v := range m {
		result.values[name] = toValueList(v)
	}
	return result
}

func toValueList(v interface{}) []Value {
	if v == nil {
		return []Value{nil}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []Value{normalizeValue(v)}
	}
	result := make([]Value, rv.Len())
	for i := range result {
		result[i] = normalizeValue(rv.Index(i).Interface())
	}
	return result
}

// Set replaces the value list of the named parameter.
func (r *Ranges) Set(name string, values ...Value) {
	list := make([]Value, len(values))
	for i, v := range values {
		list[i] = normalizeValue(v)
	}
	r.values[name] = list
}

// Returns the value list of the named parameter.
func (r *Ranges) Values(name string) ([]Value, bool) {
	v, ok := r.values[name]
	if !ok {
		return nil, false
	}
	return append([]Value(nil), v...), true
}

func (r *Ranges) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Returns the parameter names, sorted.
func (r *Ranges) Names() []string {
	result := make([]string, 0, len(r.values))
	for name := range r.values {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func (r *Ranges) Len() int {
	return len(r.values)
}

func (r *Ranges) Clone() *Ranges {
	result := NewRanges()
	for name, v := range r.values {
		result.values[name] = append([]Value(nil), v...)
	}
	return result
}

// Returns a plain mapping of each parameter to a copy of its value list.
func (r *Ranges) Map() map[string][]Value {
	result := make(map[string][]Value, len(r.values))
	for name, v := range r.values {
		result[name] = append([]Value(nil), v...)
	}
	return result
}

// Answers if both ranges hold the same value lists, order included.
func (r *Ranges) Equal(other *Ranges) bool {
	if len(r.values) != len(other.values) {
		return false
	}
	for name, a := range r.values {
		b, ok := other.values[name]
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equalValues(a[i], b[i]) {
				return false
			}
		}
	}
	return true
}

// Sorted copy of the union of the given value lists, without duplicates.
func mergeValues(lists ...[]Value) []Value {
	var result []Value
	for _, list := range lists {
		for _, v := range list {
			if !containsValue(result, v) {
				result = append(result, v)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return compareValues(result[i], result[j]) < 0
	})
	return result
}

// Union merges two ranges. Parameters present in both get the sorted union
// of their values; parameters present in only one pass through unchanged.
func Union(a, b *Ranges) *Ranges {
	result := a.Clone()
	for name, bv := range b.values {
		av, ok := result.values[name]
		if !ok {
			result.values[name] = append([]Value(nil), bv...)
			continue
		}
		result.values[name] = mergeValues(av, bv)
	}
	return result
}

// Filtered replaces the value list of every parameter of r that also
// appears in filter with the filter's list. Parameters that only appear in
// filter are ignored.
func Filtered(r, filter *Ranges) *Ranges {
	result := r.Clone()
	for name, fv := range filter.values {
		if _, ok := result.values[name]; ok {
			result.values[name] = append([]Value(nil), fv...)
		}
	}
	return result
}

// Returns the names of the parameters with more than one value, sorted.
func (r *Ranges) MultivalueParameters() []string {
	var result []string
	for _, name := range r.Names() {
		if len(r.values[name]) > 1 {
			result = append(result, name)
		}
	}
	return result
}

// Returns the number of grid points, the product of the value list lengths.
func (r *Ranges) GridSize() int {
	result := 1
	for _, v := range r.values {
		result *= len(v)
	}
	return result
}

// Answers if the given parameter assignment is a point of this grid: every
// parameter of the ranges is assigned one of its values.
func (r *Ranges) Contains(point map[string]Value) bool {
	for name, values := range r.values {
		v, ok := point[name]
		if !ok || !containsValue(values, v) {
			return false
		}
	}
	return true
}

// EachCombination enumerates the cross product of every parameter not in
// keepTogether, in parameter name order with the last parameter varying
// fastest. Each combination holds a single value for every cross parameter
// plus the complete value lists of the keepTogether parameters. Enumeration
// stops at the first error returned by fn.
func (r *Ranges) EachCombination(keepTogether []string, fn func(*Ranges) error) error {
	kept := map[string]bool{}
	for _, name := range keepTogether {
		if !r.Has(name) {
			return errors.Wrapf(ErrInvalidArgument, "unknown parameter '%s'", name)
		}
		kept[name] = true
	}
	var cross []string
	for _, name := range r.Names() {
		if !kept[name] {
			cross = append(cross, name)
		}
	}
	emit := func(assign func(*Ranges)) error {
		c := NewRanges()
		for name := range kept {
			c.values[name] = append([]Value(nil), r.values[name]...)
		}
		assign(c)
		return fn(c)
	}

	switch len(cross) {
	case 0:
		return emit(func(*Ranges) {})
	case 1:
		name := cross[0]
		for _, v := range r.values[name] {
			if err := emit(func(c *Ranges) { c.values[name] = []Value{v} }); err != nil {
				return err
			}
		}
		return nil
	}

	lists := make([][]Value, len(cross))
	for i, name := range cross {
		lists[i] = r.values[name]
		if len(lists[i]) == 0 {
			return nil
		}
	}
	index := make([]int, len(cross))
	for {
		err := emit(func(c *Ranges) {
			for i, name := range cross {
				c.values[name] = []Value{lists[i][index[i]]}
			}
		})
		if err != nil {
			return err
		}
		// odometer step, last position fastest
		i := len(index) - 1
		for ; i >= 0; i-- {
			index[i]++
			if index[i] < len(lists[i]) {
				break
			}
			index[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// Returns every combination produced by EachCombination.
func (r *Ranges) Combinations(keepTogether []string) ([]*Ranges, error) {
	var result []*Ranges
	err := r.EachCombination(keepTogether, func(c *Ranges) error {
		result = append(result, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Parameter names ordered by descending value count, then name.
func (r *Ranges) serializationOrder() []string {
	names := r.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return len(r.values[names[i]]) > len(r.values[names[j]])
	})
	return names
}

// ToLisp renders the ranges as Lisp keyword arguments, one parameter per
// line. A single value renders as a bare literal, several values as a
// quoted list. Excluded parameters are omitted.
func (r *Ranges) ToLisp(exclude []string) string {
	skip := map[string]bool{}
	for _, name := range exclude {
		skip[name] = true
	}
	var lines []string
	for _, name := range r.serializationOrder() {
		if skip[name] {
			continue
		}
		values := r.values[name]
		var text string
		if len(values) == 1 {
			text = lispLiteral(values[0])
		} else {
			items := make([]string, len(values))
			for i, v := range values {
				items[i] = lispLiteral(v)
			}
			text = "'(" + strings.Join(items, " ") + ")"
		}
		lines = append(lines, ":"+name+" "+text)
	}
	return strings.Join(lines, "\n")
}

// FilenameFragment joins name_value1_value2 segments with '.', in the same
// order as ToLisp. A nil include means every parameter.
func (r *Ranges) FilenameFragment(include []string) string {
	var keep map[string]bool
	if include != nil {
		keep = map[string]bool{}
		for _, name := range include {
			keep[name] = true
		}
	}
	var segments []string
	for _, name := range r.serializationOrder() {
		if keep != nil && !keep[name] {
			continue
		}
		parts := []string{name}
		for _, v := range r.values[name] {
			parts = append(parts, fragmentValue(v))
		}
		segments = append(segments, strings.Join(parts, "_"))
	}
	return strings.Join(segments, ".")
}

func lispLiteral(v Value) string {
	switch vv := v.(type) {
	case nil:
		return "nil"
	case bool:
		if vv {
			return "t"
		}
		return "nil"
	case string:
		if vv == "" {
			return "nil"
		}
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(vv) + `"`
	case float64:
		return FormatFloat(vv)
	}
	return formatBracketed(v)
}

func fragmentValue(v Value) string {
	switch vv := v.(type) {
	case nil:
		return "nil"
	case bool:
		if vv {
			return "t"
		}
		return "nil"
	case string:
		if vv == "" {
			return "nil"
		}
		return strings.NewReplacer("/", "-", " ", "-").Replace(vv)
	}
	return formatBracketed(v)
}
