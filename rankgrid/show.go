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

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"rankgrid/grid"
	"rankgrid/profile"
)

// Results rendered by the pretty format.
type Showable interface {
	Show(w io.Writer)
}

type descriptorReport struct {
	*grid.Descriptor
}

func (r *descriptorReport) Show(w io.Writer) {
	r.Encode(w)
}

func (r *descriptorReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Descriptor)
}

func (r *descriptorReport) MarshalYAML() (interface{}, error) {
	return r.Descriptor, nil
}

type pointReport struct {
	Name     string     `json:"name" yaml:"name"`
	Mean     *float64   `json:"mean,omitempty" yaml:"mean,omitempty"`
	Sdev     *float64   `json:"sdev,omitempty" yaml:"sdev,omitempty"`
	Range    *float64   `json:"range,omitempty" yaml:"range,omitempty"`
	N        int        `json:"n,omitempty" yaml:"n,omitempty"`
	Modified *time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
	Error    string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPointReport(p *grid.Point) pointReport {
	result := pointReport{Name: p.Config.String()}
	switch p.Status {
	case grid.Completed:
		stats := p.Stats
		result.Mean, result.Sdev, result.Range = &stats.Mean, &stats.Sdev, &stats.Range
		result.N = stats.N
	case grid.Failed:
		result.Error = p.Err.Error()
	}
	if !p.ModTime.IsZero() {
		modified := p.ModTime
		result.Modified = &modified
	}
	return result
}

type resultsReport struct {
	Experiment string        `json:"experiment" yaml:"experiment"`
	Root       string        `json:"root" yaml:"root"`
	GridSize   int           `json:"grid_size" yaml:"grid_size"`
	Completed  []pointReport `json:"completed" yaml:"completed"`
	Failed     []pointReport `json:"failed" yaml:"failed"`
	Missing    []string      `json:"missing" yaml:"missing"`
}

func newResultsReport(e *grid.Experiment) (*resultsReport, error) {
	missing, err := e.Missing()
	if err != nil {
		return nil, err
	}
	result := &resultsReport{
		Experiment: e.Name(),
		Root:       e.Root(),
		GridSize:   e.Ranges().GridSize(),
		Completed:  []pointReport{},
		Failed:     []pointReport{},
		Missing:    []string{},
	}
	for _, p := range e.Completed() {
		result.Completed = append(result.Completed, newPointReport(p))
	}
	for _, p := range e.Failed() {
		result.Failed = append(result.Failed, newPointReport(p))
	}
	for _, p := range missing {
		result.Missing = append(result.Missing, p.Config.String())
	}
	return result, nil
}

func (r *resultsReport) Show(w io.Writer) {
	fmt.Fprintf(w, "# %s (%d points in %s)\n", r.Experiment, r.GridSize, r.Root)
	fmt.Fprintf(w, "\nCompleted (%d)\n", len(r.Completed))
	if len(r.Completed) > 0 {
		fmt.Fprintf(w, "  %-8s %-8s %-8s %5s  %-16s %s\n", "mean", "sdev", "range", "n", "modified", "profile")
	}
	for _, p := range r.Completed {
		modified := "-"
		if p.Modified != nil {
			modified = humanize.Time(*p.Modified)
		}
		fmt.Fprintf(w, "  %-8.4f %-8.4f %-8.4f %5d  %-16s %s\n",
			*p.Mean, *p.Sdev, *p.Range, p.N, modified, p.Name)
	}
	fmt.Fprintf(w, "\nFailed (%d)\n", len(r.Failed))
	for _, p := range r.Failed {
		fmt.Fprintf(w, "  %s\n    %s\n", p.Name, p.Error)
	}
	fmt.Fprintf(w, "\nMissing (%d)\n", len(r.Missing))
	for _, name := range r.Missing {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

type cleanReport struct {
	Experiment string   `json:"experiment" yaml:"experiment"`
	Removed    []string `json:"removed" yaml:"removed"`
}

func (r *cleanReport) Show(w io.Writer) {
	fmt.Fprintf(w, "Removed %s from %s\n", plural(len(r.Removed), "profile"), r.Experiment)
	for _, name := range r.Removed {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

type generateReport struct {
	Experiment string   `json:"experiment" yaml:"experiment"`
	Files      []string `json:"files" yaml:"files"`
}

func (r *generateReport) Show(w io.Writer) {
	if len(r.Files) == 0 {
		fmt.Fprintf(w, "Nothing to generate, %s is complete\n", r.Experiment)
		return
	}
	fmt.Fprintf(w, "Wrote %s for %s\n", plural(len(r.Files), "descriptor"), r.Experiment)
	for _, fname := range r.Files {
		fmt.Fprintf(w, "  %s\n", fname)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}

type tableReport struct {
	Name   string          `json:"name" yaml:"name"`
	Fields []profile.Field `json:"fields" yaml:"fields"`
	Data   string          `json:"data,omitempty" yaml:"data,omitempty"`
	Rows   *int            `json:"rows,omitempty" yaml:"rows,omitempty"`
	Error  string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type schemaReport struct {
	Directory string        `json:"directory" yaml:"directory"`
	Tables    []tableReport `json:"tables" yaml:"tables"`
}

func newSchemaReport(p *profile.Profile) *schemaReport {
	result := &schemaReport{Directory: p.Dir(), Tables: []tableReport{}}
	for _, name := range p.Catalog().SortedNames() {
		schema, _ := p.Catalog().Table(name)
		item := tableReport{Name: name, Fields: schema.Fields}
		table, err := p.Table(name)
		if err == nil {
			item.Data = table.Path()
			var rows int
			rows, err = table.Count()
			if err == nil {
				item.Rows = &rows
			}
		}
		if err != nil {
			item.Error = err.Error()
		}
		result.Tables = append(result.Tables, item)
	}
	return result
}

func showField(f profile.Field) string {
	parts := []string{f.Label, ":" + f.Type}
	if f.Key {
		parts = append(parts, ":key")
	}
	if f.Partial {
		parts = append(parts, ":partial")
	}
	return strings.Join(parts, " ")
}

func (r *schemaReport) Show(w io.Writer) {
	for i, t := range r.Tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		switch {
		case t.Rows != nil:
			fmt.Fprintf(w, "%s: # %s\n", t.Name, plural(*t.Rows, "row"))
		case t.Error != "":
			fmt.Fprintf(w, "%s: # %s\n", t.Name, t.Error)
		default:
			fmt.Fprintf(w, "%s:\n", t.Name)
		}
		for _, f := range t.Fields {
			fmt.Fprintf(w, "  %s\n", showField(f))
		}
	}
}
