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
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Value is one parameter value: int, float64, bool, string or nil.
type Value = interface{}

var (
	reInteger    = regexp.MustCompile(`^\d+$`)
	reScientific = regexp.MustCompile(`^\d+\.\d+e[+-]\d+$`)
)

// ParseValue classifies a raw configuration value. Digits only become an
// int, d.de±d scientific notation becomes a float64, and anything else,
// including the empty string, stays a string.
func ParseValue(s string) Value {
	if reInteger.MatchString(s) {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	if reScientific.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// Coerce the numeric types a decoder may produce to int and float64.
func normalizeValue(v Value) Value {
	switch vv := v.(type) {
	case int8:
		return int(vv)
	case int16:
		return int(vv)
	case int32:
		return int(vv)
	case int64:
		return int(vv)
	case uint:
		return int(vv)
	case uint8:
		return int(vv)
	case uint16:
		return int(vv)
	case uint32:
		return int(vv)
	case uint64:
		return int(vv)
	case float32:
		return float64(vv)
	}
	return v
}

// FormatFloat renders a float in scientific notation the way the Lisp
// reader expects: the mantissa always has a fractional part and the
// exponent has no leading zeros, e.g. 1.0e-8 and 1.0e+0.
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(s, 'e')
	mantissa, exp := s[:i], s[i+1:]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// Render a value inside the brackets of a configuration string.
func formatBracketed(v Value) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return FormatFloat(vv)
	case bool:
		if vv {
			return "t"
		}
		return "nil"
	}
	return fmt.Sprint(v)
}

// Answers if the value counts as true.
func truthy(v Value) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return vv != ""
	case int:
		return vv != 0
	case float64:
		return vv != 0
	}
	return true
}

func typeRank(v Value) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func asFloat(v Value) float64 {
	switch vv := v.(type) {
	case int:
		return float64(vv)
	case float64:
		return vv
	}
	return 0
}

// Total order over values used to keep merged value lists deterministic:
// nil, then booleans, then numbers by magnitude, then strings.
func compareValues(a, b Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 2:
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		// ints sort before floats of the same magnitude
		_, ia := a.(int)
		_, ib := b.(int)
		switch {
		case ia == ib:
			return 0
		case ia:
			return -1
		}
		return 1
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprintf("%#v", a), fmt.Sprintf("%#v", b))
}

func equalValues(a, b Value) bool {
	return typeRank(a) == typeRank(b) && compareValues(a, b) == 0
}

func containsValue(values []Value, v Value) bool {
	for _, x := range values {
		if equalValues(x, v) {
			return true
		}
	}
	return false
}
