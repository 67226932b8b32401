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

// Command datastream inspects and moves the cached data of a workflow run
// from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adbc-drivers/datastream-go/datastream"
	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	traceNone     = ""
	traceStdout   = "stdout"
	traceOTLPHTTP = "otlp-http"
	traceOTLPGRPC = "otlp-grpc"
)

// app holds the global flags and what they produce.
type app struct {
	configPath string
	debug      bool
	trace      string

	stderr   io.Writer
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}
	root := &cobra.Command{
		Use:   "datastream",
		Short: "Exchange cached workflow data with the host application",
		Long: `datastream reads the run configuration written by the host
(jupyterPipes.json by default) and gives access to the cached input
connections, the workflow constants and the outgoing channels 1 to 5.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = datastream.NewLogger(a.stderr, a.debug)
			return a.setupTracing(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdownTracing(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", datastream.DefaultConfigPath, "path of the run configuration")
	flags.BoolVar(&a.debug, "debug", false, "log at debug level")
	flags.StringVar(&a.trace, "trace", traceNone, "export traces: stdout, otlp-http or otlp-grpc")

	root.AddCommand(
		a.connectionsCmd(),
		a.constantsCmd(),
		a.metadataCmd(),
		a.readCmd(),
		a.copyCmd(),
		a.plotCmd(),
		a.convertCmd(),
	)
	return root
}

func (a *app) setupTracing(ctx context.Context) error {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch a.trace {
	case traceNone:
		return nil
	case traceStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(a.stderr), stdouttrace.WithPrettyPrint())
	case traceOTLPHTTP:
		exporter, err = otlptracehttp.New(ctx)
	case traceOTLPGRPC:
		exporter, err = otlptracegrpc.New(ctx)
	default:
		return fmt.Errorf("unknown --trace value %q, expected %s, %s or %s", a.trace, traceStdout, traceOTLPHTTP, traceOTLPGRPC)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s trace exporter: %w", a.trace, err)
	}
	a.provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(a.provider)
	a.logger.Debug("tracing enabled", slog.String("exporter", a.trace))
	return nil
}

func (a *app) shutdownTracing(ctx context.Context) error {
	if a.provider == nil {
		return nil
	}
	err := a.provider.Shutdown(ctx)
	a.provider = nil
	return err
}

// session opens the configured run. A configuration with debug set raises
// the log level even without --debug.
func (a *app) session() (*datastream.Session, error) {
	sess, err := datastream.Open(a.configPath, datastream.Options{Logger: a.logger})
	if err != nil {
		return nil, err
	}
	if sess.Config().Debug && !a.debug {
		a.logger = datastream.NewLogger(a.stderr, true)
		sess = datastream.NewSession(sess.Config(), datastream.Options{Logger: a.logger})
	}
	return sess, nil
}

// reportError prints err unless an ErrorHelper already logged it.
func reportError(w io.Writer, err error) {
	if driverbase.KindOf(err) == nil {
		fmt.Fprintln(w, err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
