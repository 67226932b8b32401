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

package datastream

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const readBatchSize = 64 * 1024

// FieldInfo is the metadata of one column in the yxdb context. Length is
// nil, an int, or a float64 of the form precision.scale.
type FieldInfo struct {
	Name        string
	Type        string
	Length      any
	Source      string
	Description string
}

// Read loads the cached data of an incoming connection. Columns get the
// Arrow type matching their declared type, and their metadata records the
// declared yxdb type.
func (s *Session) Read(ctx context.Context, name string) (tbl arrow.Table, err error) {
	ctx, span := s.tracer.Start(ctx, "datastream.Read", trace.WithAttributes(attribute.String("datastream.connection", name)))
	defer func() { endSpan(span, err) }()

	path, err := s.connectionPath(name)
	if err != nil {
		return nil, err
	}
	tbl, err = driverbase.Using(
		func() (*Datafile, io.Closer, error) { return s.openDatafile(ctx, path, datafileOptions{}) },
		func(df *Datafile) (arrow.Table, error) { return s.readTable(ctx, df) })
	if err != nil {
		if tbl != nil {
			tbl.Release()
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int64("datastream.rows", tbl.NumRows()))
	s.logger.InfoContext(ctx, "SUCCESS: reading input data", slog.String("connection", name), slog.Int64("rows", tbl.NumRows()))
	return tbl, nil
}

// schemaOf derives the Arrow schema of a datafile from its declared columns.
func (s *Session) schemaOf(ctx context.Context, df *Datafile) (*arrow.Schema, error) {
	cols, err := df.Columns(ctx)
	if err != nil {
		return nil, err
	}
	from := df.Format.Context()
	fields := make([]arrow.Field, len(cols))
	for i, col := range cols {
		tl, err := s.tools.Parse(col.Type, from)
		if err != nil {
			return nil, err
		}
		target, err := s.tools.Convert(tl, from, metadata.Arrow)
		if err != nil {
			return nil, err
		}
		declared, err := s.tools.Convert(tl, from, metadata.YXDB)
		if err != nil {
			return nil, err
		}
		fields[i], err = frame.Field(col.Name, target, frame.FieldMetadata{
			SourceType:  declared.String(),
			Length:      declared.Length,
			Source:      col.Source,
			Description: col.Description,
		})
		if err != nil {
			return nil, s.errs.WrapValue(err, "Error: unable to read metadata (%s)", df.Path)
		}
	}
	return arrow.NewSchema(fields, nil), nil
}

func (s *Session) readTable(ctx context.Context, df *Datafile) (arrow.Table, error) {
	schema, err := s.schemaOf(ctx, df)
	if err != nil {
		return nil, err
	}
	if df.Format == FormatSQLite {
		rr, err := df.db.Read(ctx, "", schema, s.alloc)
		if err != nil {
			return nil, err
		}
		defer rr.Release()
		return s.collect(df, schema, rr)
	}
	return s.readYXDB(ctx, df, schema)
}

// collect drains rr into a table.
func (s *Session) collect(df *Datafile, schema *arrow.Schema, rr array.RecordReader) (arrow.Table, error) {
	var batches []arrow.RecordBatch
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for rr.Next() {
		b := rr.RecordBatch()
		b.Retain()
		batches = append(batches, b)
	}
	if err := rr.Err(); err != nil {
		return nil, s.errs.WrapValue(err, "Error: unable to read input table (%s)", df.Path)
	}
	return array.NewTableFromRecords(schema, batches), nil
}

func (s *Session) readYXDB(ctx context.Context, df *Datafile, schema *arrow.Schema) (arrow.Table, error) {
	r, err := s.lib.Open(ctx, df.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	builder := array.NewRecordBuilder(s.alloc, schema)
	defer builder.Release()
	var batches []arrow.RecordBatch
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()

	pending := 0
	for row := int64(0); ; row++ {
		rec, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if len(rec) != schema.NumFields() {
			return nil, s.errs.ValueError("record %d has %d values, expected %d (%s)", row, len(rec), schema.NumFields(), df.Path)
		}
		for i, v := range rec {
			if err := frame.Append(builder.Field(i), v); err != nil {
				return nil, s.errs.WrapValue(err, "record %d, field %q (%s)", row, schema.Field(i).Name, df.Path)
			}
		}
		if pending++; pending == readBatchSize {
			batches = append(batches, builder.NewRecordBatch())
			pending = 0
		}
	}
	if pending > 0 || len(batches) == 0 {
		batches = append(batches, builder.NewRecordBatch())
	}
	return array.NewTableFromRecords(schema, batches), nil
}

// ReadMetadata returns the yxdb metadata of the columns of an incoming
// connection, with default lengths filled in.
func (s *Session) ReadMetadata(ctx context.Context, name string) (info []FieldInfo, err error) {
	ctx, span := s.tracer.Start(ctx, "datastream.ReadMetadata", trace.WithAttributes(attribute.String("datastream.connection", name)))
	defer func() { endSpan(span, err) }()

	path, err := s.connectionPath(name)
	if err != nil {
		return nil, err
	}
	return driverbase.Using(
		func() (*Datafile, io.Closer, error) { return s.openDatafile(ctx, path, datafileOptions{}) },
		func(df *Datafile) ([]FieldInfo, error) { return s.fieldInfo(ctx, df) })
}

func (s *Session) fieldInfo(ctx context.Context, df *Datafile) ([]FieldInfo, error) {
	cols, err := df.Columns(ctx)
	if err != nil {
		return nil, err
	}
	from := df.Format.Context()
	info := make([]FieldInfo, len(cols))
	for i, col := range cols {
		tl, err := s.tools.ConvertString(col.Type, from, metadata.YXDB)
		if err != nil {
			return nil, err
		}
		if tl, err = s.tools.SupplementDefault(tl, metadata.YXDB); err != nil {
			return nil, err
		}
		length, err := s.tools.FormatLength(tl.Length, metadata.YXDB)
		if err != nil {
			return nil, err
		}
		info[i] = FieldInfo{
			Name:        col.Name,
			Type:        tl.Type,
			Length:      length,
			Source:      col.Source,
			Description: col.Description,
		}
	}
	return info, nil
}

// FrameMetadata reports the yxdb metadata tbl would be written with, by
// writing it to a temporary file in the configured format and reading the
// metadata back.
func (s *Session) FrameMetadata(ctx context.Context, tbl arrow.Table) (info []FieldInfo, err error) {
	ctx, span := s.tracer.Start(ctx, "datastream.FrameMetadata")
	defer func() { endSpan(span, err) }()

	outputs, err := s.describe(tbl.Schema(), nil)
	if err != nil {
		return nil, err
	}
	format := s.cfg.TempFileFormat
	path := filepath.Join(s.tempDir, "datastream-"+uuid.NewString()+"."+format.Extension())
	span.SetAttributes(attribute.String("datastream.path", path))
	return driverbase.Using(
		func() (*Datafile, io.Closer, error) {
			return s.openDatafile(ctx, path, datafileOptions{Format: format, CreateNew: true, Temporary: true})
		},
		func(df *Datafile) ([]FieldInfo, error) {
			if err := s.writeDatafile(ctx, df, tbl, outputs); err != nil {
				return nil, err
			}
			return s.fieldInfo(ctx, df)
		})
}
