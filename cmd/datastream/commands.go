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

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/adbc-drivers/datastream-go/datastream"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/spf13/cobra"
)

func (a *app) connectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List the cached incoming connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range sess.IncomingConnectionNames() {
				fmt.Fprintf(w, "%s\t%s\n", name, sess.Config().InputConnections[name])
			}
			return w.Flush()
		},
	}
}

func (a *app) constantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constants [name]",
		Short: "Show the workflow constants, or the value of one constant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			names := sess.WorkflowConstantNames()
			if len(args) == 1 {
				if _, err := sess.WorkflowConstant(args[0]); err != nil {
					return err
				}
				names = args
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				v, err := sess.WorkflowConstant(name)
				if err != nil {
					return err
				}
				tl, err := sess.ConstantType(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%v\t%s\n", name, v, tl.Type)
			}
			return w.Flush()
		},
	}
}

func writeFieldInfo(cmd *cobra.Command, info []datastream.FieldInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tLENGTH\tSOURCE\tDESCRIPTION")
	for _, f := range info {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Name, f.Type, metadata.FieldText(f.Length), f.Source, f.Description)
	}
	return w.Flush()
}

func (a *app) metadataCmd() *cobra.Command {
	var frame bool
	cmd := &cobra.Command{
		Use:   "metadata <connection>",
		Short: "Show the yxdb metadata of an incoming connection",
		Long: `Show the name, yxdb type and length of every column of an incoming
connection. With --frame, the connection is loaded first and the metadata
it would be written with is shown instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			var info []datastream.FieldInfo
			if frame {
				tbl, err := sess.Read(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer tbl.Release()
				info, err = sess.FrameMetadata(cmd.Context(), tbl)
				if err != nil {
					return err
				}
			} else if info, err = sess.ReadMetadata(cmd.Context(), args[0]); err != nil {
				return err
			}
			return writeFieldInfo(cmd, info)
		},
	}
	cmd.Flags().BoolVar(&frame, "frame", false, "show the metadata the loaded table would be written with")
	return cmd
}

func (a *app) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <connection>",
		Short: "Print the rows of an incoming connection as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			tbl, err := sess.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer tbl.Release()

			reader := array.NewTableReader(tbl, 0)
			defer reader.Release()
			for reader.Next() {
				if err := array.RecordToJSON(reader.RecordBatch(), cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return reader.Err()
		},
	}
}

// parseColumnSpec reads "column=name:type:length", where every part after
// the column is optional, e.g. "amount=:Fixed Decimal:19.6".
func parseColumnSpec(s string) (datastream.ColumnSpec, error) {
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return datastream.ColumnSpec{}, fmt.Errorf("invalid column spec %q, expected column=name:type:length", s)
	}
	parts := strings.SplitN(rest, ":", 3)
	spec := datastream.ColumnSpec{Column: column, Name: parts[0]}
	if len(parts) > 1 {
		spec.Type = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		spec.Length = parts[2]
	}
	return spec, nil
}

func (a *app) copyCmd() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "copy <connection> <channel>",
		Short: "Send the data of an incoming connection to an outgoing channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := datastream.ParseChannel(args[1])
			if err != nil {
				return err
			}
			specs := make([]datastream.ColumnSpec, len(columns))
			for i, c := range columns {
				if specs[i], err = parseColumnSpec(c); err != nil {
					return err
				}
			}
			sess, err := a.session()
			if err != nil {
				return err
			}
			tbl, err := sess.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer tbl.Release()
			if err := sess.Write(cmd.Context(), tbl, channel, specs...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.OutputPath(channel))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&columns, "column", nil, "override a column as column=name:type:length (repeatable)")
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot <png-file> <channel>",
		Short: "Send a PNG image to an outgoing channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := datastream.ParseChannel(args[1])
			if err != nil {
				return err
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.WritePlot(cmd.Context(), image, channel); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.OutputPath(channel))
			return nil
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert <type>",
		Short: "Convert a combined type string between type contexts",
		Long: `Convert a combined type string such as "decimal(19,6)" from one context
to another. Contexts: yxdb, sqlite, arrow and scalar.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := metadata.NewTools(nil, a.logger)
			tl, err := tools.ConvertString(args[0], metadata.Context(from), metadata.Context(to))
			if err != nil {
				return err
			}
			combined, err := tools.Concat(tl.Type, tl.Length, metadata.Context(to))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), combined)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", string(metadata.SQLite), "context of the given type")
	cmd.Flags().StringVar(&to, "to", string(metadata.YXDB), "context to convert to")
	return cmd
}
