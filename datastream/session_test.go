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

package datastream_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/adbc-drivers/datastream-go/datastream"
	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/adbc-drivers/datastream-go/sqlitecache"
	"github.com/adbc-drivers/datastream-go/testutil"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type SessionTest struct {
	suite.Suite
	ctx      context.Context
	dir      string
	tempDir  string
	alloc    *memory.CheckedAllocator
	recorder *tracetest.SpanRecorder
	logs     bytes.Buffer
}

func TestSession(t *testing.T) {
	suite.Run(t, &SessionTest{})
}

func (s *SessionTest) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.tempDir = filepath.Join(s.dir, "tmp")
	s.Require().NoError(os.Mkdir(s.tempDir, 0o755))
	s.alloc = memory.NewCheckedAllocator(memory.DefaultAllocator)
	s.recorder = tracetest.NewSpanRecorder()
	s.logs.Reset()
}

func (s *SessionTest) TearDownTest() {
	s.alloc.AssertSize(s.T(), 0)
}

func (s *SessionTest) session(format datastream.Format) *datastream.Session {
	cfg := &datastream.Config{
		InputConnections: map[string]string{},
		Constants:        map[string]any{"Engine.WorkflowDirectory": s.dir},
		TempFileFormat:   format,
		OutputDirectory:  s.dir,
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))
	return datastream.NewSession(cfg, datastream.Options{
		Logger:  datastream.NewLogger(&s.logs, false),
		Alloc:   s.alloc,
		TempDir: s.tempDir,
		Tracer:  tp.Tracer("datastream_test"),
	})
}

var peopleSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "score", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}, Nullable: true},
	{Name: "born", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: "active", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
}, nil)

func (s *SessionTest) people() arrow.Table {
	return testutil.TableFromJSON(s.T(), s.alloc, peopleSchema, `[
		{"id": 1, "name": "ada", "score": "12.50", "born": "1815-12-10", "active": true},
		{"id": 2, "name": null, "score": null, "born": null, "active": null}
	]`)
}

var peopleRows = [][]any{
	{int64(1), "ada", "12.50", time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), true},
	{int64(2), nil, nil, nil, nil},
}

func (s *SessionTest) rows(tbl arrow.Table) [][]any {
	reader := array.NewTableReader(tbl, 0)
	defer reader.Release()
	iter, err := frame.NewRowIterator(reader)
	s.Require().NoError(err)
	defer iter.Close()

	var rows [][]any
	for iter.Next() {
		row := slices.Clone(iter.Row())
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = slices.Clone(b)
			}
		}
		rows = append(rows, row)
	}
	s.Require().NoError(iter.Err())
	return rows
}

// connect points an incoming connection at the file of an outgoing channel.
func (s *SessionTest) connect(sess *datastream.Session, name string, channel int) {
	sess.Config().InputConnections[name] = sess.OutputPath(channel)
}

func (s *SessionTest) TestRoundTrip() {
	for _, format := range datastream.ValidFormats {
		s.Run(string(format), func() {
			sess := s.session(format)
			tbl := s.people()
			defer tbl.Release()

			s.Require().NoError(sess.Write(s.ctx, tbl, 1))
			s.FileExists(filepath.Join(s.dir, "output_1."+string(format)))
			s.Contains(s.logs.String(), "SUCCESS: writing outgoing connection data")

			s.connect(sess, "#1", 1)
			s.Equal([]string{"#1"}, sess.IncomingConnectionNames())
			got, err := sess.Read(s.ctx, "#1")
			s.Require().NoError(err)
			defer got.Release()

			s.Equal(int64(2), got.NumRows())
			s.Equal([]string{"id", "name", "score", "born", "active"}, fieldNames(got.Schema()))
			for i, field := range got.Schema().Fields() {
				s.True(arrow.TypeEqual(peopleSchema.Field(i).Type, field.Type), field.Name)
			}
			s.Equal(peopleRows, s.rows(got))
			s.Contains(s.logs.String(), "SUCCESS: reading input data")

			score := frame.MetadataOf(got.Schema().Field(2))
			s.Equal("Fixed Decimal (10, 2)", score.SourceType)
			s.Equal(metadata.Length{10, 2}, score.Length)
			name := frame.MetadataOf(got.Schema().Field(1))
			s.Equal("V_WString (2147483647)", name.SourceType)
		})
	}
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

func (s *SessionTest) TestReadMetadata() {
	for _, format := range datastream.ValidFormats {
		s.Run(string(format), func() {
			sess := s.session(format)
			tbl := s.people()
			defer tbl.Release()
			s.Require().NoError(sess.Write(s.ctx, tbl, 2))
			s.connect(sess, "#2", 2)

			info, err := sess.ReadMetadata(s.ctx, "#2")
			s.Require().NoError(err)
			s.Equal([]datastream.FieldInfo{
				{Name: "id", Type: "Int64", Length: 8},
				{Name: "name", Type: "V_WString", Length: metadata.MaxStringLength},
				{Name: "score", Type: "Fixed Decimal", Length: 10.2},
				{Name: "born", Type: "Date", Length: 8},
				{Name: "active", Type: "Boolean", Length: 1},
			}, info)
		})
	}
}

func (s *SessionTest) TestFrameMetadata() {
	for _, format := range datastream.ValidFormats {
		s.Run(string(format), func() {
			sess := s.session(format)
			tbl := s.people()
			defer tbl.Release()

			info, err := sess.FrameMetadata(s.ctx, tbl)
			s.Require().NoError(err)
			s.Len(info, 5)
			s.Equal(datastream.FieldInfo{Name: "score", Type: "Fixed Decimal", Length: 10.2}, info[2])

			entries, err := os.ReadDir(s.tempDir)
			s.Require().NoError(err)
			s.Empty(entries)
			s.NoFileExists(sess.OutputPath(1))
		})
	}
}

func (s *SessionTest) TestColumnSpecs() {
	sess := s.session(datastream.FormatYXDB)
	tbl := s.people()
	defer tbl.Release()

	s.Require().NoError(sess.Write(s.ctx, tbl, 1,
		datastream.ColumnSpec{Column: "name", Name: "full_name", Type: "V_String", Length: 50},
		datastream.ColumnSpec{Column: "score", Type: "Fixed Decimal", Length: 19.6},
		datastream.ColumnSpec{Column: "id", Name: "key"},
	))
	s.connect(sess, "#1", 1)
	info, err := sess.ReadMetadata(s.ctx, "#1")
	s.Require().NoError(err)
	s.Equal([]datastream.FieldInfo{
		{Name: "key", Type: "Int64", Length: 8},
		{Name: "full_name", Type: "V_String", Length: 50},
		{Name: "score", Type: "Fixed Decimal", Length: 19.6},
		{Name: "born", Type: "Date", Length: 8},
		{Name: "active", Type: "Boolean", Length: 1},
	}, info)

	// types recorded on read are kept when the table is written again
	got, err := sess.Read(s.ctx, "#1")
	s.Require().NoError(err)
	defer got.Release()
	s.Require().NoError(sess.Write(s.ctx, got, 2))
	s.connect(sess, "#2", 2)
	again, err := sess.ReadMetadata(s.ctx, "#2")
	s.Require().NoError(err)
	s.Equal(info, again)
}

func (s *SessionTest) TestColumnSpecErrors() {
	sess := s.session(datastream.FormatYXDB)
	tbl := s.people()
	defer tbl.Release()

	for _, tc := range []struct {
		name     string
		spec     datastream.ColumnSpec
		expected error
	}{
		{"unknown column", datastream.ColumnSpec{Column: "nope", Name: "x"}, driverbase.ErrValue},
		{"length without type", datastream.ColumnSpec{Column: "name", Length: 10}, driverbase.ErrValue},
		{"unknown type", datastream.ColumnSpec{Column: "name", Type: "Varchar2"}, driverbase.ErrLookup},
		{"bad length", datastream.ColumnSpec{Column: "score", Type: "Fixed Decimal", Length: 10}, driverbase.ErrValidation},
		{"length of wrong type", datastream.ColumnSpec{Column: "name", Type: "V_String", Length: true}, driverbase.ErrType},
		{"duplicate name", datastream.ColumnSpec{Column: "name", Name: "id"}, driverbase.ErrValue},
	} {
		s.Run(tc.name, func() {
			err := sess.Write(s.ctx, tbl, 1, tc.spec)
			s.ErrorIs(err, tc.expected)
			s.NoFileExists(sess.OutputPath(1))
		})
	}
}

func (s *SessionTest) TestDuplicateOutputName() {
	for _, format := range datastream.ValidFormats {
		s.Run(string(format), func() {
			s.logs.Reset()
			sess := s.session(format)
			tbl := s.people()
			defer tbl.Release()

			err := sess.Write(s.ctx, tbl, 1,
				datastream.ColumnSpec{Column: "name", Name: "key"},
				datastream.ColumnSpec{Column: "id", Name: "key"},
			)
			s.ErrorIs(err, driverbase.ErrValue)
			s.ErrorContains(err, `duplicate output column name "key"`)
			s.Equal(1, strings.Count(s.logs.String(), "level=ERROR"))
			s.NoFileExists(sess.OutputPath(1))
		})
	}
}

func (s *SessionTest) TestDecimalWithoutScale() {
	sess := s.session(datastream.FormatYXDB)
	tbl := s.people()
	defer tbl.Release()

	s.Require().NoError(sess.Write(s.ctx, tbl, 1,
		datastream.ColumnSpec{Column: "score", Type: "Fixed Decimal", Length: 19.0},
	))
	s.connect(sess, "#1", 1)
	info, err := sess.ReadMetadata(s.ctx, "#1")
	s.Require().NoError(err)
	s.Equal("Fixed Decimal", info[2].Type)
	s.Equal(19.0, info[2].Length)

	// the reported length is accepted as a column spec again
	s.Require().NoError(sess.Write(s.ctx, tbl, 2,
		datastream.ColumnSpec{Column: "score", Type: info[2].Type, Length: info[2].Length},
	))
	s.connect(sess, "#2", 2)
	again, err := sess.ReadMetadata(s.ctx, "#2")
	s.Require().NoError(err)
	s.Equal(info, again)
}

func (s *SessionTest) TestWriteErrors() {
	sess := s.session(datastream.FormatSQLite)
	tbl := s.people()
	defer tbl.Release()

	s.ErrorIs(sess.Write(s.ctx, tbl, 0), driverbase.ErrValue)
	s.ErrorIs(sess.Write(s.ctx, tbl, 6), driverbase.ErrValue)
	s.ErrorIs(sess.Write(s.ctx, nil, 1), driverbase.ErrType)

	sess.Config().OutputDirectory = filepath.Join(s.dir, "missing")
	s.ErrorIs(sess.Write(s.ctx, tbl, 1), driverbase.ErrReference)
}

func (s *SessionTest) TestReadErrors() {
	sess := s.session(datastream.FormatSQLite)

	_, err := sess.Read(s.ctx, "#9")
	s.ErrorIs(err, driverbase.ErrLookup)

	sess.Config().InputConnections["#1"] = filepath.Join(s.dir, "missing.yxdb")
	_, err = sess.Read(s.ctx, "#1")
	s.ErrorIs(err, driverbase.ErrReference)

	csv := filepath.Join(s.dir, "input.csv")
	s.Require().NoError(os.WriteFile(csv, []byte("a,b\n1,2\n"), 0o644))
	sess.Config().InputConnections["#2"] = csv
	_, err = sess.Read(s.ctx, "#2")
	s.ErrorIs(err, driverbase.ErrValue)
	_, err = sess.ReadMetadata(s.ctx, "#2")
	s.ErrorIs(err, driverbase.ErrValue)
}

func (s *SessionTest) TestReadMultipleTables() {
	path := filepath.Join(s.dir, "multi.db")
	db, err := sqlitecache.Open(s.ctx, path, sqlitecache.Options{CreateNew: true})
	s.Require().NoError(err)
	for _, table := range []string{"first", "second"} {
		rec := testutil.RecordFromJSON(s.T(), s.alloc, peopleSchema, `[{"id": 1, "name": "a", "score": null, "born": null, "active": false}]`)
		reader, err := array.NewRecordReader(peopleSchema, []arrow.RecordBatch{rec})
		s.Require().NoError(err)
		_, err = db.Ingest(s.ctx, sqlitecache.IngestOptions{
			TableName: table,
			Columns: []sqlitecache.ColumnDef{
				{Name: "id", Type: "bigint"},
				{Name: "name", Type: "TEXT"},
				{Name: "score", Type: "decimal (10, 2)"},
				{Name: "born", Type: "date"},
				{Name: "active", Type: "boolean"},
			},
		}, reader)
		reader.Release()
		rec.Release()
		s.Require().NoError(err)
	}
	s.Require().NoError(db.Close())

	sess := s.session(datastream.FormatSQLite)
	sess.Config().InputConnections["#1"] = path
	_, err = sess.Read(s.ctx, "#1")
	s.ErrorIs(err, driverbase.ErrValue)
	s.ErrorContains(err, "Db should only contain 1 table")
}

func (s *SessionTest) TestWritePlot() {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))

	for _, format := range datastream.ValidFormats {
		s.Run(string(format), func() {
			sess := s.session(format)
			s.Require().NoError(sess.WritePlot(s.ctx, buf.Bytes(), 3))

			s.connect(sess, "#3", 3)
			info, err := sess.ReadMetadata(s.ctx, "#3")
			s.Require().NoError(err)
			s.Equal([]datastream.FieldInfo{{Name: datastream.PlotColumn, Type: "Blob", Length: metadata.MaxStringLength}}, info)

			got, err := sess.Read(s.ctx, "#3")
			s.Require().NoError(err)
			defer got.Release()
			s.Equal([][]any{{buf.Bytes()}}, s.rows(got))
		})
	}

	sess := s.session(datastream.FormatYXDB)
	s.ErrorIs(sess.WritePlot(s.ctx, []byte("not a png"), 1), driverbase.ErrValue)
	s.ErrorIs(sess.WritePlot(s.ctx, buf.Bytes(), 9), driverbase.ErrValue)
	s.NoFileExists(sess.OutputPath(1))
}

func (s *SessionTest) geometryTable(values ...any) arrow.Table {
	field, err := frame.Field("geom", metadata.TypeLength{Type: "geometry"}, frame.FieldMetadata{})
	s.Require().NoError(err)
	schema := arrow.NewSchema([]arrow.Field{field}, nil)
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	rec, err := frame.NewRecordBatch(s.alloc, schema, rows)
	s.Require().NoError(err)
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.RecordBatch{rec})
}

func (s *SessionTest) TestSpatialObj() {
	point, err := wkb.Marshal(orb.Point{1, 2})
	s.Require().NoError(err)

	sess := s.session(datastream.FormatYXDB)
	tbl := s.geometryTable(point, nil)
	defer tbl.Release()
	s.Require().NoError(sess.Write(s.ctx, tbl, 1))

	s.connect(sess, "#1", 1)
	info, err := sess.ReadMetadata(s.ctx, "#1")
	s.Require().NoError(err)
	s.Equal([]datastream.FieldInfo{{Name: "geom", Type: "SpatialObj", Length: metadata.MaxSpatialLength}}, info)

	got, err := sess.Read(s.ctx, "#1")
	s.Require().NoError(err)
	defer got.Release()
	s.True(frame.IsGeometry(got.Schema().Field(0)))
	s.Equal([][]any{{point}, {nil}}, s.rows(got))

	bad := s.geometryTable(point, []byte("junk"))
	defer bad.Release()
	err = sess.Write(s.ctx, bad, 2)
	s.ErrorIs(err, driverbase.ErrValidation)
	s.ErrorContains(err, `row 1, field "geom"`)
	s.NoFileExists(sess.OutputPath(2))
}

func (s *SessionTest) TestTracing() {
	sess := s.session(datastream.FormatYXDB)
	tbl := s.people()
	defer tbl.Release()

	s.Require().NoError(sess.Write(s.ctx, tbl, 1))
	_, err := sess.Read(s.ctx, "#missing")
	s.Require().Error(err)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 2)
	s.Equal("datastream.Write", spans[0].Name())
	s.Equal(codes.Unset, spans[0].Status().Code)
	s.Equal("datastream.Read", spans[1].Name())
	s.Equal(codes.Error, spans[1].Status().Code)
	s.Len(spans[1].Events(), 1)
}
