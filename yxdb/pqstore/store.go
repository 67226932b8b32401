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

// Package pqstore is a yxdb.Library that keeps records in a Parquet file.
// The declared fields travel in the file's key/value metadata so that a
// reader sees exactly the declarations the writer was given.
package pqstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/adbc-drivers/datastream-go/yxdb"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"
)

// MetaKeyFields holds the JSON encoded field declarations.
const MetaKeyFields = "yxdb.fields"

const defaultBatchSize = 64 * 1024

type Store struct {
	Alloc  memory.Allocator
	Logger *slog.Logger
	Errors *driverbase.ErrorHelper
	// BatchSize is the number of rows per row group. Defaults to 65536.
	BatchSize int
}

// New returns a Store using the default allocator.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		Alloc:  memory.DefaultAllocator,
		Logger: logger,
		Errors: &driverbase.ErrorHelper{DriverName: "yxdb", Logger: logger},
	}
}

var _ yxdb.Library = (*Store)(nil)

func (s *Store) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultBatchSize
}

// declaredField is the stored form of a yxdb.Field. The type is kept by
// name so that files do not depend on enumeration values.
type declaredField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int    `json:"size"`
	Scale       int    `json:"scale"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

func arrowType(ft yxdb.FieldType) arrow.DataType {
	switch ft {
	case yxdb.Bool:
		return arrow.FixedWidthTypes.Boolean
	case yxdb.Byte:
		return arrow.PrimitiveTypes.Uint8
	case yxdb.Int16:
		return arrow.PrimitiveTypes.Int16
	case yxdb.Int32:
		return arrow.PrimitiveTypes.Int32
	case yxdb.Int64:
		return arrow.PrimitiveTypes.Int64
	case yxdb.Float:
		return arrow.PrimitiveTypes.Float32
	case yxdb.Double:
		return arrow.PrimitiveTypes.Float64
	case yxdb.Date:
		return arrow.FixedWidthTypes.Date32
	case yxdb.Time:
		return arrow.FixedWidthTypes.Time64us
	case yxdb.DateTime:
		return arrow.FixedWidthTypes.Timestamp_us
	case yxdb.Blob, yxdb.SpatialObj:
		return arrow.BinaryTypes.Binary
	default:
		// String types and Fixed Decimal, whose text keeps every scale digit.
		return arrow.BinaryTypes.String
	}
}

func storageSchema(fields []yxdb.Field) (*arrow.Schema, error) {
	declared := make([]declaredField, len(fields))
	arrowFields := make([]arrow.Field, len(fields))
	for i, f := range fields {
		declared[i] = declaredField{
			Name:        f.Name,
			Type:        f.Type.String(),
			Size:        f.Size,
			Scale:       f.Scale,
			Source:      f.Source,
			Description: f.Description,
		}
		arrowFields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	encoded, err := json.Marshal(declared)
	if err != nil {
		return nil, err
	}
	meta := arrow.NewMetadata([]string{MetaKeyFields}, []string{string(encoded)})
	return arrow.NewSchema(arrowFields, &meta), nil
}

func decodeFields(encoded string) ([]yxdb.Field, error) {
	var declared []declaredField
	if err := json.Unmarshal([]byte(encoded), &declared); err != nil {
		return nil, err
	}
	fields := make([]yxdb.Field, len(declared))
	for i, d := range declared {
		ft, err := yxdb.LookupFieldType(nil, d.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = yxdb.Field{
			Name:        d.Name,
			Type:        ft,
			Size:        d.Size,
			Scale:       d.Scale,
			Source:      d.Source,
			Description: d.Description,
		}
	}
	return fields, yxdb.CheckFields(nil, fields)
}

func (s *Store) Create(ctx context.Context, path string, fields []yxdb.Field) (yxdb.Writer, error) {
	if err := yxdb.CheckFields(s.Errors, fields); err != nil {
		return nil, err
	}
	schema, err := storageSchema(fields)
	if err != nil {
		return nil, s.Errors.WrapValue(err, "failed to declare fields for %s", path)
	}

	w := &writer{
		ctx:       ctx,
		store:     s,
		path:      path,
		batchSize: s.batchSize(),
		builder:   array.NewRecordBuilder(s.Alloc, schema),
	}
	w.fw, err = pqarrow.NewFileWriter(schema, &w.buf,
		parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Zstd),
			parquet.WithAllocator(s.Alloc),
		),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		w.builder.Release()
		return nil, s.Errors.WrapConnection(err, "Error: unable to create %s", path)
	}
	s.Logger.DebugContext(ctx, "created yxdb writer", slog.String("path", path), slog.Int("fields", len(fields)))
	return w, nil
}

type writer struct {
	ctx       context.Context
	store     *Store
	path      string
	batchSize int
	builder   *array.RecordBuilder
	buf       bytes.Buffer
	fw        *pqarrow.FileWriter
	pending   int
	rows      int64
	// err poisons the writer: a failed Append may leave a partial row in
	// the builder.
	err    error
	closed bool
}

func (w *writer) Append(rec yxdb.Record) error {
	if w.closed {
		return w.store.Errors.ValueError("append to closed writer (%s)", w.path)
	}
	if w.err != nil {
		return w.err
	}
	fields := w.builder.Schema().Fields()
	if len(rec) != len(fields) {
		return w.store.Errors.ValueError("record has %d values, expected %d (%s)", len(rec), len(fields), w.path)
	}
	for i, v := range rec {
		if err := frame.Append(w.builder.Field(i), v); err != nil {
			w.err = w.store.Errors.WrapValue(err, "record %d, field %q (%s)", w.rows, fields[i].Name, w.path)
			return w.err
		}
	}
	w.rows++
	w.pending++
	if w.pending >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *writer) flush() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.builder.NewRecordBatch()
	defer rec.Release()
	w.pending = 0
	if err := w.fw.Write(rec); err != nil {
		w.err = w.store.Errors.WrapConnection(err, "Error: unable to write %s", w.path)
		return w.err
	}
	return nil
}

// Close writes the file. Nothing is written if an Append failed.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.builder.Release()

	if w.err != nil {
		return errors.Join(w.err, w.fw.Close())
	}
	if err := w.flush(); err != nil {
		return errors.Join(err, w.fw.Close())
	}
	if err := w.fw.Close(); err != nil {
		return w.store.Errors.WrapConnection(err, "Error: unable to write %s", w.path)
	}
	if err := os.WriteFile(w.path, w.buf.Bytes(), 0o644); err != nil {
		return w.store.Errors.WrapConnection(err, "Error: unable to write %s", w.path)
	}
	w.store.Logger.DebugContext(w.ctx, "wrote yxdb file",
		slog.String("path", w.path),
		slog.Int64("rows", w.rows),
		slog.Int("bytes", w.buf.Len()))
	return nil
}

func (s *Store) Open(ctx context.Context, path string) (yxdb.Reader, error) {
	rdr, err := file.OpenParquetFile(path, false, file.WithReadProps(parquet.NewReaderProperties(s.Alloc)))
	if err != nil {
		return nil, s.Errors.WrapConnection(err, "Unable to connect to input data (%s)", path)
	}
	encoded := rdr.MetaData().KeyValueMetadata().FindValue(MetaKeyFields)
	if encoded == nil {
		_ = rdr.Close()
		return nil, s.Errors.ConnectionError("Unable to connect to input data (%s): no field declarations", path)
	}
	fields, err := decodeFields(*encoded)
	if err != nil {
		_ = rdr.Close()
		return nil, s.Errors.ConnectionError("Unable to connect to input data (%s): invalid field declarations: %v", path, err)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: int64(s.batchSize())}, s.Alloc)
	if err != nil {
		return nil, s.Errors.WrapConnection(errors.Join(err, rdr.Close()), "Unable to connect to input data (%s)", path)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, s.Errors.WrapConnection(errors.Join(err, rdr.Close()), "Unable to connect to input data (%s)", path)
	}
	if rr.Schema().NumFields() != len(fields) {
		rr.Release()
		_ = rdr.Close()
		return nil, s.Errors.ConnectionError("Unable to connect to input data (%s): %d columns for %d declared fields",
			path, rr.Schema().NumFields(), len(fields))
	}
	iter, err := frame.NewRowIterator(rr)
	if err != nil {
		rr.Release()
		return nil, s.Errors.WrapConnection(errors.Join(err, rdr.Close()), "Unable to connect to input data (%s)", path)
	}
	s.Logger.DebugContext(ctx, "opened yxdb file",
		slog.String("path", path),
		slog.Int64("rows", rdr.NumRows()),
		slog.Int("fields", len(fields)))
	return &reader{store: s, path: path, fields: fields, file: rdr, rr: rr, iter: iter}, nil
}

type reader struct {
	store  *Store
	path   string
	fields []yxdb.Field
	file   *file.Reader
	rr     pqarrow.RecordReader
	iter   *frame.RowIterator
}

func (r *reader) Fields() []yxdb.Field {
	return r.fields
}

func (r *reader) Next() (yxdb.Record, error) {
	if r.iter == nil {
		return nil, io.EOF
	}
	if !r.iter.Next() {
		if err := r.iter.Err(); err != nil {
			return nil, r.store.Errors.WrapConnection(err, "Error: unable to read %s", r.path)
		}
		return nil, io.EOF
	}
	row := r.iter.Row()
	rec := make(yxdb.Record, len(row))
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			v = bytes.Clone(b)
		}
		rec[i] = v
	}
	return rec, nil
}

func (r *reader) Close() error {
	if r.iter == nil {
		return nil
	}
	r.iter.Close()
	r.iter = nil
	r.rr.Release()
	return r.file.Close()
}
