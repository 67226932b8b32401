// Copyright (c) 2025 ADBC Drivers Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package yxdb describes the record-oriented binary format the host uses for
// its tabular files. The format itself is provided by a Library
// implementation.
package yxdb

import (
	"context"
	"io"

	"github.com/adbc-drivers/datastream-go/driverbase"
)

// Field is the declaration of one column of a file.
type Field struct {
	Name string
	Type FieldType
	// Size is the width for string types and the precision for Fixed Decimal.
	Size int
	// Scale is only meaningful for Fixed Decimal.
	Scale       int
	Source      string
	Description string
}

// Record is one row, with one value per declared field. A nil value is a
// null.
//
// Values use the Go type of their field: bool, uint8, int16, int32, int64,
// float32, float64, string (also for Fixed Decimal), time.Time (Date, Time,
// DateTime) and []byte (Blob, SpatialObj). Writers accept anything that
// converts losslessly to those.
type Record []any

// Reader reads the records of an existing file.
type Reader interface {
	io.Closer
	Fields() []Field
	// Next returns the next record, or io.EOF after the last one. The
	// returned record is not reused.
	Next() (Record, error)
}

// Writer writes a new file. All fields are declared up front; Close
// finalizes the file.
type Writer interface {
	io.Closer
	// Append adds a record with one value per field. rec is not retained.
	Append(rec Record) error
}

// Library opens and creates files of the format.
type Library interface {
	// Open fails with a ConnectionError if path is not a file of the
	// format.
	Open(ctx context.Context, path string) (Reader, error)
	// Create declares the fields of a new file at path, replacing any
	// existing file once the writer is closed.
	Create(ctx context.Context, path string, fields []Field) (Writer, error)
}

var defaultErrs = &driverbase.ErrorHelper{DriverName: "yxdb"}

// helper returns errs, or an ErrorHelper that does not log when errs is nil.
func helper(errs *driverbase.ErrorHelper) *driverbase.ErrorHelper {
	if errs == nil {
		return defaultErrs
	}
	return errs
}

// CheckFields validates a field list before it is declared: names must be
// non-empty and unique, and Fixed Decimal needs 0 <= scale <= size. Failures
// are reported through errs, which may be nil.
func CheckFields(errs *driverbase.ErrorHelper, fields []Field) error {
	errs = helper(errs)
	if len(fields) == 0 {
		return errs.ValueError("at least one field is required")
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return errs.ValueError("field %d has no name", i)
		}
		if _, ok := seen[f.Name]; ok {
			return errs.ValueError("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, ok := fieldTypeNames[f.Type]; !ok {
			return errs.LookupError("field %q has unknown type %d", f.Name, int(f.Type))
		}
		if f.Size < 0 || f.Scale < 0 {
			return errs.ValidationError("field %q has a negative size or scale", f.Name)
		}
		if f.Type == FixedDecimal && f.Scale > f.Size {
			return errs.ValidationError("field %q: scale %d exceeds precision %d", f.Name, f.Scale, f.Size)
		}
	}
	return nil
}
