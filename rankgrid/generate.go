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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"rankgrid/grid"
)

// One descriptor per incomplete combination. Maxent parameters go to the
// trainer options, everything else to the experiment options.
var descriptorTemplate = template.Must(template.New("descriptor").Parse(
	`;;; {{.Name}}: {{.Points}} grid point{{if ne .Points 1}}s{{end}}
(in-package :tsdb)

(grid-experiment
 :name "{{.Name}}"
{{- range .Options}}
 {{.}}
{{- end}}
 :trainer
 (
{{- range $i, $line := .Maxent}}{{if $i}}
  {{end}}{{$line}}
{{- end}}))
`))

type descriptorData struct {
	Name    string
	Points  int
	Options []string
	Maxent  []string
}

func lispLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Writes Lisp experiment descriptors into dir.
type generator struct {
	dir          string
	prefix       string
	name         string
	keepTogether []string
}

// Returns the file name for the given combination: the prefix followed by
// the values of the parameters that vary between descriptors.
func (g *generator) filename(combo *grid.Ranges) string {
	kept := map[string]bool{}
	for _, name := range g.keepTogether {
		kept[name] = true
	}
	include := []string{}
	for _, name := range combo.Names() {
		if !kept[name] {
			include = append(include, name)
		}
	}
	fragment := combo.FilenameFragment(include)
	if fragment == "" {
		fragment = g.name
	}
	return g.prefix + fragment + ".lisp"
}

func (g *generator) render(combo *grid.Ranges) ([]byte, error) {
	var other []string
	for _, name := range combo.Names() {
		if !isMaxent(name) {
			other = append(other, name)
		}
	}
	data := descriptorData{
		Name:    g.name,
		Points:  combo.GridSize(),
		Options: lispLines(combo.ToLisp(grid.MaxentParameters)),
		Maxent:  lispLines(combo.ToLisp(other)),
	}
	var buf bytes.Buffer
	if err := descriptorTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "failed to render descriptor for '%s'", g.name)
	}
	return buf.Bytes(), nil
}

// Write one descriptor per combination, returns the paths written.
func (g *generator) writeAll(combos []*grid.Ranges) ([]string, error) {
	files := []string{}
	if len(combos) == 0 {
		return files, nil
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return files, errors.Wrapf(err, "failed to create '%s'", g.dir)
	}
	for _, combo := range combos {
		data, err := g.render(combo)
		if err != nil {
			return files, err
		}
		fname := filepath.Join(g.dir, g.filename(combo))
		if err := os.WriteFile(fname, data, 0o644); err != nil {
			return files, errors.Wrapf(err, "failed to write '%s'", fname)
		}
		files = append(files, fname)
	}
	return files, nil
}

func isMaxent(name string) bool {
	for _, p := range grid.MaxentParameters {
		if p == name {
			return true
		}
	}
	return false
}
