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

// Package sqlitecache is the sqlite backend of the tabular cache: single
// table database files written by the host and read back as Arrow data.
package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

type Options struct {
	// CreateNew allows opening a file that does not exist yet.
	CreateNew bool
	Logger    *slog.Logger
	Errors    *driverbase.ErrorHelper
}

// DB is an open sqlite cache file.
type DB struct {
	path   string
	db     *sql.DB
	conn   *LoggingConn
	logger *slog.Logger
	errs   *driverbase.ErrorHelper
}

// Column is one row of pragma table_info.
type Column struct {
	CID     int
	Name    string
	Type    string
	NotNull bool
	Default sql.NullString
	PK      int
}

// Open opens the database at path and checks that it is a readable sqlite
// database.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	errs := opts.Errors
	if errs == nil {
		errs = &driverbase.ErrorHelper{DriverName: "sqlitecache", Logger: logger}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.WrapValue(err, "invalid path %q", path)
	}
	if _, err := os.Stat(abs); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.WrapConnection(err, "Unable to connect to input data (%s)", abs)
		} else if !opts.CreateNew {
			return nil, errs.WrapReference(err, "Unable to connect to input data (%s)", abs)
		}
	}

	db, err := sql.Open(DriverName, abs)
	if err != nil {
		return nil, errs.WrapConnection(err, "Unable to connect to input data (%s)", abs)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errs.WrapConnection(errors.Join(err, db.Close()), "Unable to connect to input data (%s)", abs)
	}

	d := &DB{
		path:   abs,
		db:     db,
		conn:   &LoggingConn{Conn: conn, Logger: logger},
		logger: logger,
		errs:   errs,
	}
	if err := d.verify(ctx); err != nil {
		return nil, errs.WrapConnection(errors.Join(err, d.Close()), "Unable to connect to input data (%s)", abs)
	}
	logger.DebugContext(ctx, "opened sqlite database", slog.String("path", abs))
	return d, nil
}

func (d *DB) verify(ctx context.Context) error {
	rows, err := d.conn.QueryContext(ctx, "select * from sqlite_master limit 1")
	if err != nil {
		return err
	}
	for rows.Next() {
	}
	return errors.Join(rows.Err(), rows.Close())
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	if d.db != nil {
		err = errors.Join(err, d.db.Close())
		d.db = nil
	}
	return err
}

// TableNames lists the tables of the database in creation order.
func (d *DB) TableNames(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "select name from sqlite_master where type='table'")
	if err != nil {
		return nil, d.errs.WrapConnection(err, "failed to list tables (%s)", d.path)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, d.errs.WrapConnection(err, "failed to list tables (%s)", d.path)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, d.errs.WrapConnection(err, "failed to list tables (%s)", d.path)
	}
	return names, nil
}

// SingularTable returns the name of the only table in the database.
func (d *DB) SingularTable(ctx context.Context) (string, error) {
	tables, err := d.TableNames(ctx)
	if err != nil {
		return "", err
	}
	switch len(tables) {
	case 0:
		return "", d.errs.ValueError("Db does not contain any tables (%s)", d.path)
	case 1:
		d.logger.DebugContext(ctx, "found singular table", slog.String("table", tables[0]))
		return tables[0], nil
	default:
		return "", d.errs.ValueError("Db should only contain 1 table, but instead has multiple: %v (%s)", tables, d.path)
	}
}

// ValidTableName reports whether name is safe to splice into a statement:
// letters, digits and underscores only, starting with a letter.
func ValidTableName(name string) (bool, string) {
	for _, r := range name {
		if !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false, "invalid characters (only alphanumeric and underscores)"
		}
	}
	if name == "" || !((name[0] >= 'a' && name[0] <= 'z') || (name[0] >= 'A' && name[0] <= 'Z')) {
		return false, "first character must be a letter"
	}
	return true, ""
}

// resolveTable returns table, or the singular table when table is empty,
// after checking that the name is valid.
func (d *DB) resolveTable(ctx context.Context, table string) (string, error) {
	if table == "" {
		var err error
		if table, err = d.SingularTable(ctx); err != nil {
			return "", err
		}
	}
	if ok, reason := ValidTableName(table); !ok {
		return "", d.errs.ValueError("Invalid table name (%s) Reason: %s", table, reason)
	}
	return table, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Columns returns the declared columns of table. An empty table name means
// the singular table.
func (d *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	table, err := d.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, fmt.Sprintf("pragma table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, d.errs.WrapConnection(err, "Error: unable to read metadata for table %q (%s)", table, d.path)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			col     Column
			notNull int64
		)
		if err := rows.Scan(&col.CID, &col.Name, &col.Type, &notNull, &col.Default, &col.PK); err != nil {
			return nil, d.errs.WrapConnection(err, "Error: unable to read metadata for table %q (%s)", table, d.path)
		}
		col.NotNull = notNull != 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, d.errs.WrapConnection(err, "Error: unable to read metadata for table %q (%s)", table, d.path)
	}
	if len(columns) == 0 {
		return nil, d.errs.LookupError("table %q does not exist (%s)", table, d.path)
	}
	return columns, nil
}

// Read streams the rows of table into Arrow record batches of the given
// schema. An empty table name means the singular table. The reader must be
// released before the database is closed.
func (d *DB) Read(ctx context.Context, table string, schema *arrow.Schema, alloc memory.Allocator) (array.RecordReader, error) {
	table, err := d.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, "select * from "+quoteIdent(table))
	if err != nil {
		return nil, d.errs.WrapConnection(err, "Error: unable to read input table %q (%s)", table, d.path)
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, d.errs.WrapConnection(errors.Join(err, rows.Close()), "Error: unable to read input table %q (%s)", table, d.path)
	}
	if len(names) != schema.NumFields() {
		_ = rows.Close()
		return nil, d.errs.ValueError("table %q has %d columns, schema has %d (%s)", table, len(names), schema.NumFields(), d.path)
	}

	source := &rowSource{rows: rows, schema: schema, table: table}
	rr := &driverbase.BaseRecordReader{}
	if err := rr.Init(ctx, alloc, 0, source); err != nil {
		return nil, d.errs.WrapConnection(err, "Error: unable to read input table %q (%s)", table, d.path)
	}
	d.logger.DebugContext(ctx, "reading table", slog.String("table", table), slog.String("path", d.path))
	return rr, nil
}

// rowSource feeds sqlite rows to a BaseRecordReader.
type rowSource struct {
	rows      *LoggingRows
	schema    *arrow.Schema
	table     string
	values    []any
	valuePtrs []any
	rowIdx    int64
}

func (s *rowSource) Schema(context.Context) (*arrow.Schema, error) {
	return s.schema, nil
}

func (s *rowSource) BeginAppending(*array.RecordBuilder) error {
	s.values = make([]any, s.schema.NumFields())
	s.valuePtrs = make([]any, len(s.values))
	for i := range s.values {
		s.valuePtrs[i] = &s.values[i]
	}
	return nil
}

func (s *rowSource) AppendRow(builder *array.RecordBuilder) error {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	if err := s.rows.Scan(s.valuePtrs...); err != nil {
		return err
	}
	for i, v := range s.values {
		if err := frame.Append(builder.Field(i), v); err != nil {
			return fmt.Errorf("table %q, row %d, column %q: %w", s.table, s.rowIdx, s.schema.Field(i).Name, err)
		}
	}
	s.rowIdx++
	return nil
}

func (s *rowSource) Close() error {
	return s.rows.Close()
}
