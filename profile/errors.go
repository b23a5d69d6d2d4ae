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
	"fmt"

	"github.com/pkg/errors"
)

// The profile directory has no relations file.
type MissingRelationsFileError struct {
	Directory string
}

func (e *MissingRelationsFileError) Error() string {
	return fmt.Sprintf("missing relations file in '%s'", e.Directory)
}

// A relations file line does not match the expected syntax.
type InvalidRelationsFileError struct {
	Path       string
	LineNumber int
	Line       string
}

func (e *InvalidRelationsFileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid relations file, line %d: '%s'", e.LineNumber, e.Line)
	}
	return fmt.Sprintf("invalid relations file '%s', line %d: '%s'", e.Path, e.LineNumber, e.Line)
}

// Neither the plain nor a compressed data file exists for a table.
type MissingDataFileError struct {
	Table string
}

func (e *MissingDataFileError) Error() string {
	return fmt.Sprintf("missing data file for table '%s'", e.Table)
}

// Statistics were requested on a table with no records.
type EmptyDataFileError struct {
	Table string
}

func (e *EmptyDataFileError) Error() string {
	return fmt.Sprintf("empty data file for table '%s'", e.Table)
}

// The relations file does not declare the requested table.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table '%s' is not declared in relations file", e.Table)
}

// A data line could not be decoded against its schema.
type DecodeError struct {
	Table      string
	LineNumber int
	Reason     string
}

func (e *DecodeError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("table '%s', line %d: %s", e.Table, e.LineNumber, e.Reason)
	}
	return fmt.Sprintf("table '%s': %s", e.Table, e.Reason)
}

// A field is missing from a record or its value is not numeric.
type FieldError struct {
	Table string
	Field string
	Value interface{}
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("table '%s' has no field '%s'", e.Table, e.Field)
	}
	return fmt.Sprintf("table '%s', field '%s': non-numeric value '%v'", e.Table, e.Field, e.Value)
}

// Answers if the given error, or any error it wraps, says that a profile is
// not valid (as opposed to an I/O or argument failure).
func IsInvalid(err error) bool {
	var (
		e1 *MissingRelationsFileError
		e2 *InvalidRelationsFileError
		e3 *MissingDataFileError
		e4 *EmptyDataFileError
		e5 *UnknownTableError
		e6 *DecodeError
		e7 *FieldError
	)
	return errors.As(err, &e1) || errors.As(err, &e2) || errors.As(err, &e3) ||
		errors.As(err, &e4) || errors.As(err, &e5) || errors.As(err, &e6) ||
		errors.As(err, &e7)
}
