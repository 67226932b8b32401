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
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/adbc-drivers/datastream-go/sqlitecache"
	"github.com/adbc-drivers/datastream-go/yxdb"
)

// Format is the file format of a datafile.
type Format string

const (
	FormatYXDB   Format = "yxdb"
	FormatSQLite Format = "sqlite"
)

// ValidFormats lists the formats a datafile may have.
var ValidFormats = []Format{FormatYXDB, FormatSQLite}

// Context is the metadata context whose type names the format declares.
func (f Format) Context() metadata.Context {
	if f == FormatSQLite {
		return metadata.SQLite
	}
	return metadata.YXDB
}

// Extension is the file extension, without the dot, of new files.
func (f Format) Extension() string {
	return string(f)
}

// FormatOf infers the format of a file from its extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		return FormatSQLite, true
	case ".yxdb":
		return FormatYXDB, true
	}
	return "", false
}

type datafileOptions struct {
	// Format overrides inference from the extension.
	Format    Format
	CreateNew bool
	// Temporary files are removed when the datafile is closed.
	Temporary bool
}

// Datafile is an open cached data file. Sqlite files hold a connection for
// the lifetime of the datafile; yxdb files are opened per operation.
type Datafile struct {
	Path      string
	Format    Format
	temporary bool
	db        *sqlitecache.DB
	lib       yxdb.Library
	logger    *slog.Logger
	errs      *driverbase.ErrorHelper
}

// openDatafile returns the datafile and the closer that releases it, in the
// shape driverbase.Using expects.
func (s *Session) openDatafile(ctx context.Context, path string, opts datafileOptions) (*Datafile, io.Closer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, s.errs.WrapValue(err, "db_path value (%s) is not a valid filepath", path)
	}

	format := opts.Format
	if format == "" {
		var ok bool
		if format, ok = FormatOf(abs); !ok {
			return nil, nil, s.errs.ValueError("fileformat of %s is invalid -- it must be one of the following values: %v", abs, ValidFormats)
		}
	}

	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		if !opts.CreateNew {
			return nil, nil, s.errs.WrapReference(err, "Unable to connect to input data (%s)", abs)
		}
		dir := filepath.Dir(abs)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, nil, s.errs.ReferenceError("unable to write file -- directory does not exist (%s)", dir)
		}
	} else if err != nil {
		return nil, nil, s.errs.WrapConnection(err, "Unable to connect to input data (%s)", abs)
	}

	df := &Datafile{
		Path:      abs,
		Format:    format,
		temporary: opts.Temporary,
		lib:       s.lib,
		logger:    s.logger,
		errs:      s.errs,
	}
	if format == FormatSQLite {
		df.db, err = sqlitecache.Open(ctx, abs, sqlitecache.Options{CreateNew: opts.CreateNew, Logger: s.logger, Errors: s.errs})
		if err != nil {
			return nil, nil, err
		}
	}
	s.logger.DebugContext(ctx, "opened datafile", slog.String("path", abs), slog.String("format", string(format)))
	return df, df, nil
}

// Close releases the file. A temporary file is then removed; a failed
// removal is logged and otherwise ignored.
func (d *Datafile) Close() error {
	var err error
	if d.db != nil {
		err = d.db.Close()
		d.db = nil
	}
	if d.temporary {
		d.temporary = false
		if rmErr := os.Remove(d.Path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			d.logger.Warn("unable to delete temp file, it will be cleaned up later", slog.String("path", d.Path), slog.Any("err", rmErr))
		} else {
			d.logger.Debug("deleted temp file", slog.String("path", d.Path))
		}
	}
	return err
}

// TableNames lists the tables of the file. A yxdb file holds one table,
// named after the file.
func (d *Datafile) TableNames(ctx context.Context) ([]string, error) {
	if d.Format == FormatSQLite {
		return d.db.TableNames(ctx)
	}
	return []string{strings.TrimSuffix(filepath.Base(d.Path), filepath.Ext(d.Path))}, nil
}

// column is a column as the file declares it.
type column struct {
	Name string
	// Type is the combined type string in the file's context.
	Type        string
	Source      string
	Description string
}

// Columns returns the declared columns of the file's only table.
func (d *Datafile) Columns(ctx context.Context) ([]column, error) {
	if d.Format == FormatSQLite {
		cols, err := d.db.Columns(ctx, "")
		if err != nil {
			return nil, err
		}
		out := make([]column, len(cols))
		for i, c := range cols {
			out[i] = column{Name: c.Name, Type: c.Type}
		}
		return out, nil
	}

	r, err := d.lib.Open(ctx, d.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	fields := r.Fields()
	out := make([]column, len(fields))
	for i, f := range fields {
		out[i] = column{Name: f.Name, Type: f.TypeLength().String(), Source: f.Source, Description: f.Description}
	}
	return out, nil
}
