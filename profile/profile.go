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

// Package profile reads profile directories: a relations file describing
// the tables, and one '@'-separated data file per table, optionally gzip or
// xz compressed.
package profile

import (
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is an open profile directory.
type Profile struct {
	dir     string
	catalog *Catalog
	logger  *slog.Logger
}

type Option func(*Profile)

// Use the given logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Profile) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Open the profile in the given directory by reading its relations file.
func Open(dir string, opts ...Option) (*Profile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingRelationsFileError{Directory: dir}
		}
		return nil, errors.Wrapf(err, "failed to open profile '%s'", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("profile '%s' is not a directory", dir)
	}
	p := &Profile{dir: dir, logger: discardLogger()}
	for _, opt := range opts {
		opt(p)
	}
	catalog, err := LoadCatalog(dir)
	if err != nil {
		return nil, err
	}
	p.catalog = catalog
	p.logger.Debug("opened profile", "dir", dir, "tables", catalog.Len())
	return p, nil
}

func (p *Profile) Dir() string {
	return p.dir
}

func (p *Profile) Catalog() *Catalog {
	return p.catalog
}

// Returns the names of the tables declared in the relations file.
func (p *Profile) Tables() []string {
	return p.catalog.Names()
}

// Open the named table.
func (p *Profile) Table(name string) (*DataTable, error) {
	schema, ok := p.catalog.Table(name)
	if !ok {
		return nil, &UnknownTableError{Table: name}
	}
	return openDataTable(p.dir, schema)
}

// Statistics summarizes one numeric field over all records of a table.
type Statistics struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	Sdev  float64 `json:"sdev" yaml:"sdev"`
	Range float64 `json:"range" yaml:"range"`
	N     int     `json:"n" yaml:"n"`
}

// Compute statistics for the given field of the given table. The standard
// deviation uses the sample (n-1) denominator when there is more than one
// record.
func (p *Profile) Statistics(table, field string) (Statistics, error) {
	t, err := p.Table(table)
	if err != nil {
		return Statistics{}, err
	}
	if _, ok := t.Schema().Field(field); !ok {
		return Statistics{}, &FieldError{Table: table, Field: field}
	}
	var values []float64
	err = t.Each(func(r Record) error {
		x, err := toFloat(r[field])
		if err != nil {
			return &FieldError{Table: table, Field: field, Value: r[field]}
		}
		values = append(values, x)
		return nil
	})
	if err != nil {
		return Statistics{}, err
	}
	if len(values) == 0 {
		return Statistics{}, &EmptyDataFileError{Table: table}
	}
	result := Summarize(values)
	p.logger.Debug("computed statistics",
		"dir", p.dir, "table", table, "field", field, "n", result.N, "mean", result.Mean)
	return result, nil
}

// Summarize computes mean, standard deviation and range of the given
// values, which must not be empty.
func Summarize(values []float64) Statistics {
	n := len(values)
	sum := 0.0
	lo, hi := values[0], values[0]
	for _, x := range values {
		sum += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, x := range values {
		ss += (x - mean) * (x - mean)
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	return Statistics{
		Mean:  mean,
		Sdev:  math.Sqrt(ss / float64(denom)),
		Range: hi - lo,
		N:     n,
	}
}

func toFloat(v interface{}) (float64, error) {
	switch vv := v.(type) {
	case int:
		return float64(vv), nil
	case float64:
		return vv, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(vv), 64)
	}
	return 0, errors.Errorf("bad numeric value '%v'", v)
}
