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

// Package datastream exchanges tables, workflow constants and plots between
// a user script and the host application, through the cached data files
// named by the run configuration.
package datastream

import (
	"io"
	"log/slog"
	"os"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/adbc-drivers/datastream-go/yxdb"
	"github.com/adbc-drivers/datastream-go/yxdb/pqstore"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DriverName prefixes every error message.
const DriverName = metadata.DriverName

const tracerName = "github.com/adbc-drivers/datastream-go/datastream"

// NewLogger returns a text logger writing to w, at debug level if debug is
// set and info level otherwise.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type Options struct {
	Logger *slog.Logger
	// Library reads and writes yxdb files. Defaults to pqstore.
	Library yxdb.Library
	Alloc   memory.Allocator
	// TempDir receives the probe files of FrameMetadata. Defaults to
	// os.TempDir().
	TempDir string
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Session serves one script execution against one configuration.
type Session struct {
	cfg     *Config
	tools   *metadata.Tools
	lib     yxdb.Library
	alloc   memory.Allocator
	logger  *slog.Logger
	errs    *driverbase.ErrorHelper
	tracer  trace.Tracer
	tempDir string
}

func NewSession(cfg *Config, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tools := metadata.NewTools(nil, logger)
	s := &Session{
		cfg:     cfg,
		tools:   tools,
		lib:     opts.Library,
		alloc:   opts.Alloc,
		logger:  logger,
		errs:    tools.Errors(),
		tracer:  opts.Tracer,
		tempDir: opts.TempDir,
	}
	if s.lib == nil {
		s.lib = pqstore.New(logger)
	}
	if s.alloc == nil {
		s.alloc = memory.DefaultAllocator
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.tempDir == "" {
		s.tempDir = os.TempDir()
	}
	return s
}

// Open loads the configuration at path and starts a session on it.
func Open(path string, opts Options) (*Session, error) {
	cfg, err := LoadConfig(path, opts.Logger)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg, opts), nil
}

func (s *Session) Config() *Config {
	return s.cfg
}

func (s *Session) Tools() *metadata.Tools {
	return s.tools
}

// IncomingConnectionNames returns the names of the cached inputs, sorted.
func (s *Session) IncomingConnectionNames() []string {
	return s.cfg.ConnectionNames()
}

func (s *Session) connectionPath(name string) (string, error) {
	path, ok := s.cfg.InputConnections[name]
	if !ok {
		return "", s.errs.LookupError("The input connection %q has not been cached -- re-run workflow to refresh the cached data", name)
	}
	return path, nil
}

// endSpan records err, if any, on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
