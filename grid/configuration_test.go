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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

const canonical = "[jhpstg] GP[2] +PT -LEX CW[2] +AE NS[4] NT[type] -NB LM[0] FT[:::1] RS[] " +
	"MM[tao_lmvm] MI[5000] RT[1.0e-8] AT[1.0e-20] VA[1.0e+0] PC[100]"

func TestParseValue(t *testing.T) {
	testCases := []struct {
		input string
		want  Value
	}{
		{"42", 42},
		{"0", 0},
		{"1.0e-8", 1.0e-8},
		{"2.5e+3", 2500.0},
		{"1.5", "1.5"},
		{"1e-8", "1e-8"},
		{"-3", "-3"},
		{"type", "type"},
		{"", ""},
	}
	for _, tc := range testCases {
		got := ParseValue(tc.input)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseValue(%q) mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	testCases := []struct {
		input float64
		want  string
	}{
		{1.0e-8, "1.0e-8"},
		{1.0e-20, "1.0e-20"},
		{1.0, "1.0e+0"},
		{0.1, "1.0e-1"},
		{2500, "2.5e+3"},
		{1.25e-3, "1.25e-3"},
		{0, "0.0e+0"},
	}
	for _, tc := range testCases {
		if got := FormatFloat(tc.input); got != tc.want {
			t.Errorf("FormatFloat(%v): expected %s, got %s", tc.input, tc.want, got)
		}
	}
}

func TestParseConfiguration(t *testing.T) {
	config, err := ParseConfiguration(canonical)
	if err != nil {
		t.Fatalf("ParseConfiguration failed: %v", err)
	}
	if config.Name != "jhpstg" {
		t.Errorf("Expected name jhpstg, got %s", config.Name)
	}
	want := map[string]Value{
		"grandparenting":          2,
		"use-preterminal-types-p": true,
		"lexicalization-p":        false,
		"constituent-weight":      2,
		"active-edges-p":          true,
		"ngram-size":              4,
		"ngram-tag":               "type",
		"ngram-back-off-p":        false,
		"lm-p":                    0,
		"random-sample-size":      "",
		"MM":                      "tao_lmvm",
		"MI":                      5000,
		"relative-tolerance":      1.0e-8,
		"AT":                      1.0e-20,
		"variance":                1.0,
		"PC":                      100,
	}
	if diff := cmp.Diff(want, config.Parameters()); diff != "" {
		t.Errorf("Parameters mismatch (-want +got):\n%s", diff)
	}
	if got := config.String(); got != canonical {
		t.Errorf("String mismatch:\nwant %s\ngot  %s", canonical, got)
	}
}

func TestConfigurationRoundTrip(t *testing.T) {
	config := NewConfiguration("rt", map[string]Value{
		"grandparenting":          4,
		"use-preterminal-types-p": false,
		"lexicalization-p":        true,
		"constituent-weight":      1,
		"active-edges-p":          false,
		"ngram-size":              0,
		"ngram-tag":               "form",
		"ngram-back-off-p":        true,
		"lm-p":                    10,
		"random-sample-size":      500,
		"MM":                      "tao_cg",
		"MI":                      100,
		"relative-tolerance":      1.0e-6,
		"AT":                      1.0e-10,
		"variance":                1.0e-2,
		"PC":                      50,
	})
	parsed, err := ParseConfiguration(config.String())
	if err != nil {
		t.Fatalf("ParseConfiguration failed: %v", err)
	}
	if diff := cmp.Diff(config.Parameters(), parsed.Parameters()); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigurationMissingFields(t *testing.T) {
	config := NewConfiguration("x", map[string]Value{"grandparenting": 1})
	want := "[x] GP[1] -PT -LEX CW[] -AE NS[] NT[] -NB LM[] FT[:::1] RS[] MM[] MI[] RT[] AT[] VA[] PC[]"
	if got := config.String(); got != want {
		t.Errorf("String mismatch:\nwant %s\ngot  %s", want, got)
	}
}

func TestParseConfigurationIgnoresFT(t *testing.T) {
	config, err := ParseConfiguration("[a] FT[:::3] GP[1]")
	if err != nil {
		t.Fatalf("ParseConfiguration failed: %v", err)
	}
	if _, ok := config.Get("FT"); ok {
		t.Error("Expected FT to be ignored")
	}
	if diff := cmp.Diff([]string{"grandparenting"}, config.ParameterNames()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigurationErrors(t *testing.T) {
	for _, input := range []string{"", "jhpstg GP[1]", "[a] GP", "[a] *PT", "[a] GP[1"} {
		_, err := ParseConfiguration(input)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseConfiguration(%q): expected ErrInvalidArgument, got %v", input, err)
		}
	}
}

func TestExpand(t *testing.T) {
	if got := Expand("GP"); got != "grandparenting" {
		t.Errorf("Expected grandparenting, got %s", got)
	}
	if got := Expand("MM"); got != "MM" {
		t.Errorf("Expected identity expansion, got %s", got)
	}
}

func TestConfigurationFromRanges(t *testing.T) {
	r := NewRanges()
	r.Set("grandparenting", 3)
	r.Set("variance", 1.0e-4)
	config, err := ConfigurationFromRanges("e", r)
	if err != nil {
		t.Fatalf("ConfigurationFromRanges failed: %v", err)
	}
	if !config.Ranges().Equal(r) {
		t.Error("Expected configuration ranges to equal the source ranges")
	}

	r.Set("ngram-size", 1, 2)
	if _, err := ConfigurationFromRanges("e", r); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}
