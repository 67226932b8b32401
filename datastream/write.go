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
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/adbc-drivers/datastream-go/sqlitecache"
	"github.com/adbc-drivers/datastream-go/yxdb"
	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paulmach/orb/encoding/wkb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OutputTable is the table name of sqlite output files.
const OutputTable = "data"

// ColumnSpec overrides the output metadata of one column.
type ColumnSpec struct {
	// Column is the name of the column in the table being written.
	Column string
	// Name, if set, renames the column.
	Name string
	// Type is a yxdb type name, e.g. "V_String" or "Fixed Decimal".
	Type string
	// Length is nil for the type's default, an int, a float64 such as 19.6,
	// a string such as "(19, 6)", or a metadata.Length. It requires Type.
	Length any
}

// outputColumn is the declaration of a column about to be written.
type outputColumn struct {
	Name        string
	Type        metadata.TypeLength
	Source      string
	Description string
}

// OutputPath is the file an outgoing channel is written to.
func (s *Session) OutputPath(channel int) string {
	return filepath.Join(s.cfg.OutputDirectory, fmt.Sprintf("output_%d.%s", channel, s.cfg.TempFileFormat.Extension()))
}

// Write sends tbl to an outgoing channel (1 to 5), optionally overriding
// the name, type and length of some columns.
func (s *Session) Write(ctx context.Context, tbl arrow.Table, channel int, columns ...ColumnSpec) (err error) {
	ctx, span := s.tracer.Start(ctx, "datastream.Write", trace.WithAttributes(attribute.Int("datastream.channel", channel)))
	defer func() { endSpan(span, err) }()

	if err := validateChannel(s.errs, channel); err != nil {
		return err
	}
	if tbl == nil {
		return s.errs.TypeError("a table is required for passing data to outgoing connections")
	}
	outputs, err := s.describe(tbl.Schema(), columns)
	if err != nil {
		return err
	}

	path := s.OutputPath(channel)
	span.SetAttributes(attribute.String("datastream.path", path), attribute.Int64("datastream.rows", tbl.NumRows()))
	_, err = driverbase.Using(
		func() (*Datafile, io.Closer, error) {
			return s.openDatafile(ctx, path, datafileOptions{Format: s.cfg.TempFileFormat, CreateNew: true})
		},
		func(df *Datafile) (struct{}, error) { return struct{}{}, s.writeDatafile(ctx, df, tbl, outputs) })
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "SUCCESS: writing outgoing connection data", slog.Int("channel", channel), slog.Int64("rows", tbl.NumRows()))
	return nil
}

// describe derives the yxdb declaration of every column of schema and
// applies the overrides in specs.
func (s *Session) describe(schema *arrow.Schema, specs []ColumnSpec) ([]outputColumn, error) {
	outputs := make([]outputColumn, schema.NumFields())
	index := make(map[string]int, schema.NumFields())
	for i, field := range schema.Fields() {
		tl, err := s.declaredType(field)
		if err != nil {
			return nil, err
		}
		meta := frame.MetadataOf(field)
		outputs[i] = outputColumn{Name: field.Name, Type: tl, Source: meta.Source, Description: meta.Description}
		index[field.Name] = i
	}

	for _, spec := range specs {
		i, ok := index[spec.Column]
		if !ok {
			return nil, s.errs.ValueError("column %q is not in the table", spec.Column)
		}
		if spec.Type == "" {
			if spec.Length != nil {
				return nil, s.errs.ValueError("length cannot be specified without a type (column %q)", spec.Column)
			}
		} else {
			combined, err := s.tools.Concat(spec.Type, spec.Length, metadata.YXDB)
			if err != nil {
				return nil, err
			}
			if outputs[i].Type, err = s.tools.Parse(combined, metadata.YXDB); err != nil {
				return nil, err
			}
		}
		if spec.Name != "" {
			outputs[i].Name = spec.Name
		}
	}

	names := make(map[string]struct{}, len(outputs))
	for _, out := range outputs {
		if _, ok := names[out.Name]; ok {
			return nil, s.errs.ValueError("duplicate output column name %q", out.Name)
		}
		names[out.Name] = struct{}{}
	}
	return outputs, nil
}

// declaredType is the yxdb type a column is written with: the type recorded
// when the column was read, if it still matches the column's Arrow type, and
// otherwise the conversion of the Arrow type.
func (s *Session) declaredType(field arrow.Field) (metadata.TypeLength, error) {
	arrowType, err := frame.TypeOf(field)
	if err != nil {
		return metadata.TypeLength{}, s.errs.WrapType(err, "unable to write column %q", field.Name)
	}
	if recorded := frame.MetadataOf(field).SourceType; recorded != "" {
		if tl, err := s.tools.Parse(recorded, metadata.YXDB); err == nil {
			if back, err := s.tools.Convert(tl, metadata.YXDB, metadata.Arrow); err == nil && back.Type == arrowType.Type {
				return s.tools.SupplementDefault(tl, metadata.YXDB)
			}
		}
	}
	tl, err := s.tools.Convert(arrowType, metadata.Arrow, metadata.YXDB)
	if err != nil {
		return metadata.TypeLength{}, err
	}
	return s.tools.SupplementDefault(tl, metadata.YXDB)
}

func (s *Session) writeDatafile(ctx context.Context, df *Datafile, tbl arrow.Table, outputs []outputColumn) error {
	if df.Format == FormatSQLite {
		return s.writeSQLite(ctx, df, tbl, outputs)
	}
	return s.writeYXDB(ctx, df, tbl, outputs)
}

func (s *Session) writeSQLite(ctx context.Context, df *Datafile, tbl arrow.Table, outputs []outputColumn) error {
	columns := make([]sqlitecache.ColumnDef, len(outputs))
	for i, out := range outputs {
		tl, err := s.tools.Convert(out.Type, metadata.YXDB, metadata.SQLite)
		if err != nil {
			return err
		}
		decl, err := s.tools.Concat(tl.Type, tl.Length, metadata.SQLite)
		if err != nil {
			return err
		}
		columns[i] = sqlitecache.ColumnDef{Name: out.Name, Type: decl}
	}

	reader := array.NewTableReader(tbl, 0)
	defer reader.Release()
	_, err := df.db.Ingest(ctx, sqlitecache.IngestOptions{
		TableName: OutputTable,
		Mode:      adbc.OptionValueIngestModeReplace,
		Columns:   columns,
	}, reader)
	return err
}

func (s *Session) writeYXDB(ctx context.Context, df *Datafile, tbl arrow.Table, outputs []outputColumn) error {
	fields := make([]yxdb.Field, len(outputs))
	for i, out := range outputs {
		f, err := yxdb.FieldOf(s.errs, out.Name, out.Type)
		if err != nil {
			return err
		}
		f.Source, f.Description = out.Source, out.Description
		fields[i] = f
	}

	w, err := s.lib.Create(ctx, df.Path, fields)
	if err != nil {
		return err
	}
	if err := s.appendRecords(w, df, tbl, fields); err != nil {
		// no partial output
		err = errors.Join(err, w.Close())
		if rmErr := os.Remove(df.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("unable to delete partial output", slog.String("path", df.Path), slog.Any("err", rmErr))
		}
		return err
	}
	return w.Close()
}

func (s *Session) appendRecords(w yxdb.Writer, df *Datafile, tbl arrow.Table, fields []yxdb.Field) error {
	reader := array.NewTableReader(tbl, 0)
	defer reader.Release()
	iter, err := frame.NewRowIterator(reader)
	if err != nil {
		return s.errs.WrapValue(err, "Error: unable to write output table (%s)", df.Path)
	}
	defer iter.Close()

	for iter.Next() {
		row := iter.Row()
		for i, f := range fields {
			if f.Type == yxdb.SpatialObj && row[i] != nil {
				if err := validSpatialObj(row[i]); err != nil {
					return s.errs.ValidationError("row %d, field %q is not a valid spatial object: %v", iter.RowsRead()-1, f.Name, err)
				}
			}
		}
		if err := w.Append(yxdb.Record(row)); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return s.errs.WrapValue(err, "Error: unable to write output table (%s)", df.Path)
	}
	return nil
}

// validSpatialObj checks that v is a WKB encoded geometry.
func validSpatialObj(v any) error {
	var b []byte
	switch v := v.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("expected WKB bytes, got %T", v)
	}
	_, err := wkb.Unmarshal(b)
	return err
}

// PlotColumn is the column name of tables written by WritePlot.
const PlotColumn = "image"

// WritePlot sends a PNG image to an outgoing channel as a one row table
// with a single Blob column.
func (s *Session) WritePlot(ctx context.Context, image []byte, channel int) error {
	if err := validateChannel(s.errs, channel); err != nil {
		return err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(image)); err != nil {
		return s.errs.WrapValue(err, "the plot must be a PNG image")
	}

	field, err := frame.Field(PlotColumn, metadata.TypeLength{Type: "binary"}, frame.FieldMetadata{SourceType: "Blob"})
	if err != nil {
		return s.errs.WrapValue(err, "unable to build plot table")
	}
	schema := arrow.NewSchema([]arrow.Field{field}, nil)
	rec, err := frame.NewRecordBatch(s.alloc, schema, [][]any{{image}})
	if err != nil {
		return s.errs.WrapValue(err, "unable to build plot table")
	}
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.RecordBatch{rec})
	defer tbl.Release()
	return s.Write(ctx, tbl, channel)
}
