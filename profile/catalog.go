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
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Name of the schema file inside a profile directory.
const RelationsFile = "relations"

var (
	reComment = regexp.MustCompile(`#.*$`)
	reHeader  = regexp.MustCompile(`^([^\s:#]+):$`)
	reField   = regexp.MustCompile(`^([^\s:#]+)\s*:\s*([^\s:#]+)(\s*:\s*key)?(\s*:\s*partial)?$`)
)

// Catalog maps table names to their schema, remembering declaration order.
type Catalog struct {
	tables map[string]*Table
	names  []string
}

// Returns the named table schema.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Returns the table names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Returns the table names sorted alphabetically.
func (c *Catalog) SortedNames() []string {
	result := c.Names()
	sort.Strings(result)
	return result
}

func (c *Catalog) Len() int {
	return len(c.names)
}

// Read the relations file in the given profile directory.
func LoadCatalog(dir string) (*Catalog, error) {
	fname := filepath.Join(dir, RelationsFile)
	f, err := os.Open(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingRelationsFileError{Directory: dir}
		}
		return nil, errors.Wrapf(err, "failed to open relations file")
	}
	defer f.Close()
	result, err := ParseCatalog(f)
	var ierr *InvalidRelationsFileError
	if errors.As(err, &ierr) {
		ierr.Path = fname
	}
	return result, err
}

// Parse a relations file.
//
// The parser is a two state machine. Outside a table, blank lines are
// skipped and a "name:" line opens a table. Inside a table, every line must
// be a field declaration "label :type [:key] [:partial]" until a blank line
// closes the table. Comments run from '#' to end of line and are removed
// before matching, so a comment-only line is a blank line.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	result := &Catalog{tables: map[string]*Table{}}
	var (
		current    *Table
		headerNo   int
		headerText string
	)
	closeTable := func() error {
		if current != nil && len(current.Fields) == 0 {
			return &InvalidRelationsFileError{LineNumber: headerNo, Line: headerText}
		}
		current = nil
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(reComment.ReplaceAllString(raw, ""))
		if current == nil {
			if line == "" {
				continue
			}
			m := reHeader.FindStringSubmatch(line)
			if m == nil {
				return nil, &InvalidRelationsFileError{LineNumber: lineNo, Line: raw}
			}
			if _, ok := result.tables[m[1]]; ok {
				return nil, &InvalidRelationsFileError{LineNumber: lineNo, Line: raw}
			}
			current = NewTable(m[1])
			headerNo, headerText = lineNo, raw
			result.tables[current.Name] = current
			result.names = append(result.names, current.Name)
			continue
		}
		if line == "" {
			if err := closeTable(); err != nil {
				return nil, err
			}
			continue
		}
		m := reField.FindStringSubmatch(line)
		if m == nil {
			return nil, &InvalidRelationsFileError{LineNumber: lineNo, Line: raw}
		}
		f := Field{Label: m[1], Type: m[2], Key: m[3] != "", Partial: m[4] != ""}
		if !current.add(f) {
			return nil, &InvalidRelationsFileError{LineNumber: lineNo, Line: raw}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read relations file")
	}
	if err := closeTable(); err != nil {
		return nil, err
	}
	return result, nil
}
