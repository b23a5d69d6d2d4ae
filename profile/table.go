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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Suffixes tried, in order, when the plain data file does not exist.
var compressedSuffixes = []string{".gz", ".xz"}

// DataTable is one data file of a profile together with the schema used to
// decode it. Every traversal re-opens and re-scans the backing file.
type DataTable struct {
	schema *Table
	path   string
}

// Locate the data file for the given schema in the given directory.
func openDataTable(dir string, schema *Table) (*DataTable, error) {
	base := filepath.Join(dir, schema.Name)
	candidates := append([]string{base}, suffixed(base)...)
	for _, fname := range candidates {
		info, err := os.Stat(fname)
		if err == nil && !info.IsDir() {
			return &DataTable{schema: schema, path: fname}, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to stat '%s'", fname)
		}
	}
	return nil, &MissingDataFileError{Table: schema.Name}
}

func suffixed(base string) []string {
	result := make([]string, len(compressedSuffixes))
	for i, s := range compressedSuffixes {
		result[i] = base + s
	}
	return result
}

func (t *DataTable) Name() string {
	return t.schema.Name
}

func (t *DataTable) Schema() *Table {
	return t.schema
}

// Returns the path of the backing file, which may be compressed.
func (t *DataTable) Path() string {
	return t.path
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open the backing file, decompressing according to its suffix.
func (t *DataTable) open() (io.ReadCloser, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open '%s'", t.path)
	}
	switch {
	case strings.HasSuffix(t.path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "failed to read '%s'", t.path)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{f, zr}}, nil
	case strings.HasSuffix(t.path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "failed to read '%s'", t.path)
		}
		return &readCloser{Reader: xr, closers: []io.Closer{f}}, nil
	}
	return f, nil
}

// Each decodes the records of the table in file order and calls fn for
// each one. Blank lines are skipped. Iteration stops at the first error,
// from decoding or from fn.
func (t *DataTable) Each(fn func(Record) error) error {
	rc, err := t.open()
	if err != nil {
		return err
	}
	defer rc.Close()
	r := bufio.NewReader(rc)
	lineNo := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "failed to read '%s'", t.path)
		}
		if len(line) > 0 {
			lineNo++
			line = strings.TrimRight(line, "\r\n")
			if line != "" {
				record, derr := t.schema.Decode(line)
				if derr != nil {
					if de, ok := derr.(*DecodeError); ok {
						de.LineNumber = lineNo
					}
					return derr
				}
				if ferr := fn(record); ferr != nil {
					return ferr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

// Returns all records of the table.
func (t *DataTable) Records() ([]Record, error) {
	var result []Record
	err := t.Each(func(r Record) error {
		result = append(result, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Returns the number of records in the table.
func (t *DataTable) Count() (int, error) {
	n := 0
	err := t.Each(func(Record) error {
		n++
		return nil
	})
	return n, err
}
