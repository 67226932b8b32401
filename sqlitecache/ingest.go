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

package sqlitecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adbc-drivers/datastream-go/frame"
	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ColumnDef is a column of a table to create, with its declared type text
// (e.g. "varchar (100)").
type ColumnDef struct {
	Name string
	Type string
}

type IngestOptions struct {
	TableName string
	// One of the adbc.OptionValueIngestMode* values. Defaults to create.
	Mode string
	// Declared columns, one per field of the ingested data.
	Columns []ColumnDef
}

type TableExistsBehavior int

const (
	TableExistsError TableExistsBehavior = iota
	TableExistsIgnore
	TableExistsDrop
)

type TableMissingBehavior int

const (
	TableMissingError TableMissingBehavior = iota
	TableMissingCreate
)

func behaviors(mode string) (TableExistsBehavior, TableMissingBehavior, bool) {
	switch mode {
	case adbc.OptionValueIngestModeCreate:
		return TableExistsError, TableMissingCreate, true
	case adbc.OptionValueIngestModeAppend:
		return TableExistsIgnore, TableMissingError, true
	case adbc.OptionValueIngestModeReplace:
		return TableExistsDrop, TableMissingCreate, true
	case adbc.OptionValueIngestModeCreateAppend:
		return TableExistsIgnore, TableMissingCreate, true
	default:
		return 0, 0, false
	}
}

// Ingest writes every row of data into a table in a single transaction and
// returns the number of rows written. The reader stays owned by the caller.
func (d *DB) Ingest(ctx context.Context, opts IngestOptions, data array.RecordReader) (int64, error) {
	if opts.Mode == "" {
		opts.Mode = adbc.OptionValueIngestModeCreate
	}
	ifExists, ifMissing, ok := behaviors(opts.Mode)
	if !ok {
		return -1, d.errs.ValueError("unknown ingest mode %q", opts.Mode)
	}
	if valid, reason := ValidTableName(opts.TableName); !valid {
		return -1, d.errs.ValueError("Invalid table name (%s) Reason: %s", opts.TableName, reason)
	}
	schema := data.Schema()
	if len(opts.Columns) != schema.NumFields() {
		return -1, d.errs.ValueError("%d column definitions for %d fields", len(opts.Columns), schema.NumFields())
	}

	tx, err := d.conn.BeginTx(ctx)
	if err != nil {
		return -1, d.errs.WrapConnection(err, "Error: unable to write output table %q (%s)", opts.TableName, d.path)
	}
	rows, err := d.ingest(ctx, tx, opts, ifExists, ifMissing, data)
	if err != nil {
		return -1, errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return -1, d.errs.WrapConnection(err, "Error: unable to write output table %q (%s)", opts.TableName, d.path)
	}
	d.logger.DebugContext(ctx, "completed ingest",
		slog.String("table", opts.TableName),
		slog.String("mode", opts.Mode),
		slog.Int64("rows", rows))
	return rows, nil
}

func (d *DB) ingest(ctx context.Context, tx *LoggingTx, opts IngestOptions, ifExists TableExistsBehavior, ifMissing TableMissingBehavior, data array.RecordReader) (int64, error) {
	table := quoteIdent(opts.TableName)

	var count int
	if err := tx.QueryRowContext(ctx, "select count(*) from sqlite_master where type='table' and name=?", opts.TableName).Scan(&count); err != nil {
		return -1, d.errs.WrapConnection(err, "failed to look up table %q (%s)", opts.TableName, d.path)
	}

	create := false
	if count > 0 {
		switch ifExists {
		case TableExistsError:
			return -1, d.errs.ValueError("table %q already exists (%s)", opts.TableName, d.path)
		case TableExistsDrop:
			if _, err := tx.ExecContext(ctx, "drop table "+table); err != nil {
				return -1, d.errs.WrapConnection(err, "failed to drop table %q (%s)", opts.TableName, d.path)
			}
			create = true
		}
	} else {
		if ifMissing == TableMissingError {
			return -1, d.errs.LookupError("table %q does not exist (%s)", opts.TableName, d.path)
		}
		create = true
	}

	if create {
		defs := make([]string, len(opts.Columns))
		for i, col := range opts.Columns {
			defs[i] = strings.TrimSpace(quoteIdent(col.Name) + " " + col.Type)
		}
		stmt := fmt.Sprintf("create table %s (%s)", table, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return -1, d.errs.WrapConnection(err, "failed to create table %q (%s)", opts.TableName, d.path)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(opts.Columns)), ", ")
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("insert into %s values (%s)", table, placeholders))
	if err != nil {
		return -1, d.errs.WrapConnection(err, "failed to prepare insert into %q (%s)", opts.TableName, d.path)
	}
	defer func() { _ = insert.Close() }()

	iter, err := frame.NewRowIterator(data)
	if err != nil {
		return -1, d.errs.WrapValue(err, "invalid data for table %q", opts.TableName)
	}
	defer iter.Close()

	binders := make([]func(any) any, len(opts.Columns))
	for i, field := range data.Schema().Fields() {
		binders[i] = binderFor(field.Type)
	}
	args := make([]any, len(opts.Columns))
	for iter.Next() {
		for i, v := range iter.Row() {
			args[i] = binders[i](v)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return -1, d.errs.WrapConnection(err, "failed to insert row %d into %q (%s)", iter.RowsRead()-1, opts.TableName, d.path)
		}
	}
	if err := iter.Err(); err != nil {
		return -1, d.errs.WrapValue(err, "failed to read data for table %q", opts.TableName)
	}
	return iter.RowsRead(), nil
}

// binderFor returns how values of an Arrow type are bound: temporal values
// are stored as text in the layouts the cache reads back.
func binderFor(dt arrow.DataType) func(any) any {
	layout := ""
	switch dt.(type) {
	case *arrow.Date32Type, *arrow.Date64Type:
		layout = frame.DateLayout
	case *arrow.Time32Type, *arrow.Time64Type:
		layout = frame.TimeLayout
	case *arrow.TimestampType:
		layout = frame.TimestampLayout
	}
	if layout == "" {
		return func(v any) any { return v }
	}
	return func(v any) any {
		if t, ok := v.(time.Time); ok {
			return t.Format(layout)
		}
		return v
	}
}
