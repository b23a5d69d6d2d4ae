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
	"bytes"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Descriptor is the persisted form of an experiment: where its profiles
// live, what to measure and which grid to run.
type Descriptor struct {
	Name   string  `yaml:"name" json:"name"`
	Root   string  `yaml:"root" json:"root"`
	Table  string  `yaml:"table,omitempty" json:"table,omitempty"`
	Field  string  `yaml:"field,omitempty" json:"field,omitempty"`
	Ranges *Ranges `yaml:"ranges" json:"ranges"`
}

// Returns the descriptor of the given experiment.
func (e *Experiment) Descriptor() *Descriptor {
	return &Descriptor{
		Name:   e.name,
		Root:   e.root,
		Table:  e.table,
		Field:  e.field,
		Ranges: e.ranges.Clone(),
	}
}

// Returns the options that reproduce the descriptor's statistics settings.
func (d *Descriptor) Options() []Option {
	return []Option{WithStatistics(d.Table, d.Field)}
}

// Write the descriptor as YAML.
func (d *Descriptor) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return errors.Wrapf(err, "failed to encode experiment '%s'", d.Name)
	}
	return enc.Close()
}

// Save the descriptor to the named file.
func (d *Descriptor) Save(fname string) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(fname, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write '%s'", fname)
	}
	return nil
}

// Load an experiment descriptor from the named YAML file.
func LoadDescriptor(fname string) (*Descriptor, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", fname)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, "failed to parse '%s'", fname)
	}
	if d.Name == "" {
		return nil, errors.Errorf("experiment '%s' has no name", fname)
	}
	if d.Ranges == nil {
		d.Ranges = NewRanges()
	}
	return &d, nil
}

// Load ranges from a YAML file holding a parameter to value(s) mapping.
func LoadRanges(fname string) (*Ranges, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", fname)
	}
	result := NewRanges()
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, errors.Wrapf(err, "failed to parse '%s'", fname)
	}
	return result, nil
}

// MarshalYAML renders the ranges as a mapping with sorted keys and a flow
// sequence per parameter.
func (r *Ranges) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range r.Names() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range r.values[name] {
			// keep floats floats on reload, 1.0 would otherwise read back as 1
			if f, ok := v.(float64); ok {
				seq.Content = append(seq.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: FormatFloat(f)})
				continue
			}
			item := &yaml.Node{}
			if err := item.Encode(v); err != nil {
				return nil, errors.Wrapf(err, "parameter '%s'", name)
			}
			seq.Content = append(seq.Content, item)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		node.Content = append(node.Content, key, seq)
	}
	return node, nil
}

// UnmarshalYAML accepts a mapping whose values are scalars or sequences of
// scalars.
func (r *Ranges) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]interface{}
	if err := node.Decode(&m); err != nil {
		return err
	}
	decoded := FromMap(m)
	r.values = decoded.values
	return nil
}

func (r *Ranges) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
