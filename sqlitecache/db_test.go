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

package sqlitecache_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/adbc-drivers/datastream-go/sqlitecache"
	"github.com/adbc-drivers/datastream-go/testutil"
	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheTest struct {
	suite.Suite
	ctx   context.Context
	dir   string
	alloc *memory.CheckedAllocator
}

func TestCache(t *testing.T) {
	suite.Run(t, &CacheTest{})
}

func (s *CacheTest) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.alloc = memory.NewCheckedAllocator(memory.DefaultAllocator)
}

func (s *CacheTest) TearDownTest() {
	s.alloc.AssertSize(s.T(), 0)
}

func (s *CacheTest) open(name string, createNew bool) *sqlitecache.DB {
	db, err := sqlitecache.Open(s.ctx, filepath.Join(s.dir, name), sqlitecache.Options{CreateNew: createNew})
	s.Require().NoError(err)
	return db
}

var peopleSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "score", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}, Nullable: true},
	{Name: "born", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: "seen", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
}, nil)

var peopleColumns = []sqlitecache.ColumnDef{
	{Name: "id", Type: "bigint"},
	{Name: "name", Type: "varchar (10)"},
	{Name: "score", Type: "decimal (10, 2)"},
	{Name: "born", Type: "date"},
	{Name: "seen", Type: "datetime"},
}

func (s *CacheTest) people() array.RecordReader {
	rec := testutil.RecordFromJSON(s.T(), s.alloc, peopleSchema, `[
		{"id": 1, "name": "ada", "score": "12.50", "born": "1815-12-10", "seen": "2024-03-01T12:30:00Z"},
		{"id": 2, "name": null, "score": null, "born": null, "seen": null}
	]`)
	defer rec.Release()
	reader, err := array.NewRecordReader(peopleSchema, []arrow.RecordBatch{rec})
	s.Require().NoError(err)
	return reader
}

func (s *CacheTest) ingest(db *sqlitecache.DB, table, mode string) (int64, error) {
	reader := s.people()
	defer reader.Release()
	return db.Ingest(s.ctx, sqlitecache.IngestOptions{TableName: table, Mode: mode, Columns: peopleColumns}, reader)
}

func (s *CacheTest) TestOpenMissing() {
	_, err := sqlitecache.Open(s.ctx, filepath.Join(s.dir, "missing.db"), sqlitecache.Options{})
	s.ErrorIs(err, driverbase.ErrReference)
	s.ErrorContains(err, "Unable to connect to input data")
	s.NoFileExists(filepath.Join(s.dir, "missing.db"))
}

func (s *CacheTest) TestOpenNotADatabase() {
	path := filepath.Join(s.dir, "junk.db")
	s.Require().NoError(os.WriteFile(path, []byte(strings.Repeat("this is not a database\n", 64)), 0o644))
	_, err := sqlitecache.Open(s.ctx, path, sqlitecache.Options{})
	s.ErrorIs(err, driverbase.ErrConnection)

	var adbcErr adbc.Error
	s.Require().ErrorAs(err, &adbcErr)
	s.Equal(adbc.StatusIO, adbcErr.Code)
}

func (s *CacheTest) TestSingularTable() {
	db := s.open("cache.db", true)
	defer testutil.CheckedClose(s.T(), db)

	names, err := db.TableNames(s.ctx)
	s.Require().NoError(err)
	s.Empty(names)
	_, err = db.SingularTable(s.ctx)
	s.ErrorIs(err, driverbase.ErrValue)
	s.ErrorContains(err, "Db does not contain any tables")

	_, err = s.ingest(db, "data", "")
	s.Require().NoError(err)
	table, err := db.SingularTable(s.ctx)
	s.Require().NoError(err)
	s.Equal("data", table)

	_, err = s.ingest(db, "other", "")
	s.Require().NoError(err)
	_, err = db.SingularTable(s.ctx)
	s.ErrorIs(err, driverbase.ErrValue)
	s.ErrorContains(err, "multiple: [data other]")
}

func (s *CacheTest) TestColumns() {
	db := s.open("cache.db", true)
	defer testutil.CheckedClose(s.T(), db)

	_, err := s.ingest(db, "data", "")
	s.Require().NoError(err)

	columns, err := db.Columns(s.ctx, "")
	s.Require().NoError(err)
	var got []string
	for _, col := range columns {
		got = append(got, col.Name+":"+col.Type)
	}
	s.Equal([]string{"id:bigint", "name:varchar (10)", "score:decimal (10, 2)", "born:date", "seen:datetime"}, got)

	_, err = db.Columns(s.ctx, "nope")
	s.ErrorIs(err, driverbase.ErrLookup)
	_, err = db.Columns(s.ctx, "data; drop table data")
	s.ErrorIs(err, driverbase.ErrValue)
}

func (s *CacheTest) TestIngestAndRead() {
	db := s.open("cache.db", true)
	defer testutil.CheckedClose(s.T(), db)

	rows, err := s.ingest(db, "data", "")
	s.Require().NoError(err)
	s.Equal(int64(2), rows)

	reader, err := db.Read(s.ctx, "", peopleSchema, s.alloc)
	s.Require().NoError(err)
	defer reader.Release()

	s.Require().True(reader.Next())
	rec := reader.RecordBatch()
	s.Equal(int64(2), rec.NumRows())

	value := func(col, row int) any {
		v, err := frame.Value(rec.Column(col), row)
		s.Require().NoError(err)
		return v
	}
	s.Equal(int64(1), value(0, 0))
	s.Equal("ada", value(1, 0))
	s.Equal("12.50", value(2, 0))
	s.Equal(time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), value(3, 0))
	s.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), value(4, 0))
	for col := 1; col < peopleSchema.NumFields(); col++ {
		s.Nil(value(col, 1))
	}

	s.False(reader.Next())
	s.NoError(reader.Err())
}

func (s *CacheTest) TestIngestModes() {
	db := s.open("cache.db", true)
	defer testutil.CheckedClose(s.T(), db)

	_, err := s.ingest(db, "data", adbc.OptionValueIngestModeAppend)
	s.ErrorIs(err, driverbase.ErrLookup)

	_, err = s.ingest(db, "data", adbc.OptionValueIngestModeCreate)
	s.Require().NoError(err)
	_, err = s.ingest(db, "data", adbc.OptionValueIngestModeCreate)
	s.ErrorIs(err, driverbase.ErrValue)

	_, err = s.ingest(db, "data", adbc.OptionValueIngestModeCreateAppend)
	s.Require().NoError(err)
	s.Equal(int64(4), s.count(db))

	_, err = s.ingest(db, "data", adbc.OptionValueIngestModeReplace)
	s.Require().NoError(err)
	s.Equal(int64(2), s.count(db))

	_, err = s.ingest(db, "data", "upsert")
	s.ErrorIs(err, driverbase.ErrValue)
	_, err = s.ingest(db, "1data", "")
	s.ErrorIs(err, driverbase.ErrValue)
}

func (s *CacheTest) count(db *sqlitecache.DB) int64 {
	reader, err := db.Read(s.ctx, "data", peopleSchema, s.alloc)
	s.Require().NoError(err)
	defer reader.Release()
	var n int64
	for reader.Next() {
		n += reader.RecordBatch().NumRows()
	}
	s.Require().NoError(reader.Err())
	return n
}

func (s *CacheTest) TestReadSchemaMismatch() {
	db := s.open("cache.db", true)
	defer testutil.CheckedClose(s.T(), db)
	_, err := s.ingest(db, "data", "")
	s.Require().NoError(err)

	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	_, err = db.Read(s.ctx, "data", schema, s.alloc)
	s.ErrorIs(err, driverbase.ErrValue)
}

func TestValidTableName(t *testing.T) {
	for _, tc := range []struct {
		name   string
		valid  bool
		reason string
	}{
		{"data", true, ""},
		{"Data_2", true, ""},
		{"_data", false, "first character must be a letter"},
		{"2data", false, "first character must be a letter"},
		{"", false, "first character must be a letter"},
		{"da ta", false, "invalid characters (only alphanumeric and underscores)"},
		{"data;", false, "invalid characters (only alphanumeric and underscores)"},
	} {
		valid, reason := sqlitecache.ValidTableName(tc.name)
		assert.Equal(t, tc.valid, valid, tc.name)
		assert.Equal(t, tc.reason, reason, tc.name)
	}
}

func TestStatementsLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db, err := sqlitecache.Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), sqlitecache.Options{CreateNew: true, Logger: logger})
	require.NoError(t, err)
	defer testutil.CheckedClose(t, db)

	assert.Contains(t, buf.String(), "select * from sqlite_master limit 1")
	assert.Contains(t, buf.String(), "opened sqlite database")
}
