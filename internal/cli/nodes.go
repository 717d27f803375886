/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/node"
)

// NewNodesCommand creates the nodes command
func NewNodesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "nodes",
		Short:         "List the catalog nodes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			_, m, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, m.Stop(context.WithoutCancel(ctx)))
			}()

			nodes, err := m.Nodes(ctx)
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), opts.Format, nodes)
		},
	}
}

func printNodes(out io.Writer, format string, nodes []*node.MeshNode) error {
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(nodes)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "KEY\tADDRESS\tROUTING\tINSTANTIATION\tSTREAM\tMODULE")
	for _, n := range nodes {
		channel := "-"
		if n.StreamProvider != "" {
			channel = n.StreamProvider + ":" + n.Namespace
		}
		location := n.ModuleLocation
		if location == "" {
			location = "-"
		}
		_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.Key, n.Address(), n.RoutingKind, n.InstantiationKind, channel, location)
	}
	return writer.Flush()
}
