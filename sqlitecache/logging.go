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

// Wrappers around database/sql types that log every statement at debug
// level. Nothing is formatted unless the logger is enabled for debug.

package sqlitecache

import (
	"context"
	"database/sql"
	"log/slog"
)

type LoggingConn struct {
	Conn   *sql.Conn
	Logger *slog.Logger
}

func debugEnabled(ctx context.Context, logger *slog.Logger) bool {
	return logger != nil && logger.Enabled(ctx, slog.LevelDebug)
}

func (tc *LoggingConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	rs, err := tc.Conn.ExecContext(ctx, query, args...)
	if debugEnabled(ctx, tc.Logger) {
		tc.Logger.DebugContext(ctx, "LoggingConn.ExecContext", slog.String("query", query), slog.Int("args", len(args)), slog.Any("err", err))
	}
	return rs, err
}

func (tc *LoggingConn) QueryContext(ctx context.Context, query string, args ...any) (*LoggingRows, error) {
	rows, err := tc.Conn.QueryContext(ctx, query, args...)
	if debugEnabled(ctx, tc.Logger) {
		tc.Logger.DebugContext(ctx, "LoggingConn.QueryContext", slog.String("query", query), slog.Int("args", len(args)), slog.Any("err", err))
	}
	if err != nil {
		return nil, err
	}
	return &LoggingRows{Rows: rows, Logger: tc.Logger}, nil
}

func (tc *LoggingConn) PingContext(ctx context.Context) error {
	err := tc.Conn.PingContext(ctx)
	if debugEnabled(ctx, tc.Logger) {
		tc.Logger.DebugContext(ctx, "LoggingConn.PingContext", slog.Any("err", err))
	}
	return err
}

func (tc *LoggingConn) BeginTx(ctx context.Context) (*LoggingTx, error) {
	tx, err := tc.Conn.BeginTx(ctx, nil)
	if debugEnabled(ctx, tc.Logger) {
		tc.Logger.DebugContext(ctx, "LoggingConn.BeginTx", slog.Any("err", err))
	}
	if err != nil {
		return nil, err
	}
	return &LoggingTx{Tx: tx, Logger: tc.Logger}, nil
}

func (tc *LoggingConn) Close() error {
	return tc.Conn.Close()
}

type LoggingTx struct {
	Tx     *sql.Tx
	Logger *slog.Logger
}

func (lt *LoggingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	rs, err := lt.Tx.ExecContext(ctx, query, args...)
	if debugEnabled(ctx, lt.Logger) {
		lt.Logger.DebugContext(ctx, "LoggingTx.ExecContext", slog.String("query", query), slog.Int("args", len(args)), slog.Any("err", err))
	}
	return rs, err
}

func (lt *LoggingTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if debugEnabled(ctx, lt.Logger) {
		lt.Logger.DebugContext(ctx, "LoggingTx.QueryRowContext", slog.String("query", query), slog.Int("args", len(args)))
	}
	return lt.Tx.QueryRowContext(ctx, query, args...)
}

func (lt *LoggingTx) PrepareContext(ctx context.Context, query string) (*LoggingStmt, error) {
	stmt, err := lt.Tx.PrepareContext(ctx, query)
	if debugEnabled(ctx, lt.Logger) {
		lt.Logger.DebugContext(ctx, "LoggingTx.PrepareContext", slog.String("query", query), slog.Any("err", err))
	}
	if err != nil {
		return nil, err
	}
	return &LoggingStmt{Stmt: stmt, Logger: lt.Logger}, nil
}

func (lt *LoggingTx) Commit() error {
	err := lt.Tx.Commit()
	if lt.Logger != nil {
		lt.Logger.Debug("LoggingTx.Commit", slog.Any("err", err))
	}
	return err
}

func (lt *LoggingTx) Rollback() error {
	err := lt.Tx.Rollback()
	if lt.Logger != nil {
		lt.Logger.Debug("LoggingTx.Rollback", slog.Any("err", err))
	}
	return err
}

type LoggingRows struct {
	Rows   *sql.Rows
	Logger *slog.Logger
}

func (lr *LoggingRows) Close() error {
	return lr.Rows.Close()
}

func (lr *LoggingRows) Columns() ([]string, error) {
	return lr.Rows.Columns()
}

func (lr *LoggingRows) Err() error {
	return lr.Rows.Err()
}

func (lr *LoggingRows) Next() bool {
	return lr.Rows.Next()
}

func (lr *LoggingRows) Scan(dest ...any) error {
	return lr.Rows.Scan(dest...)
}

type LoggingStmt struct {
	Stmt   *sql.Stmt
	Logger *slog.Logger
}

// ExecContext does not log: it runs once per inserted row.
func (ls *LoggingStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	return ls.Stmt.ExecContext(ctx, args...)
}

func (ls *LoggingStmt) Close() error {
	return ls.Stmt.Close()
}
