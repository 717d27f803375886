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

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// NewInstallCommand creates the install command
func NewInstallCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install <location>",
		Short: "Install a module into the catalog",
		Long: `Install the module at location and register the nodes it declares.

Example:
  meshd install --config ./mesh.yaml ./modules/pricing.so
  meshd install --config ./mesh.yaml builtin:pricing`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			_, m, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, m.Stop(context.WithoutCancel(ctx)))
			}()

			installed, installErr := m.InstallModule(ctx, args[0])
			if len(installed) > 0 {
				if err := printNodes(cmd.OutOrStdout(), opts.Format, installed); err != nil {
					return multierr.Append(installErr, err)
				}
			}
			return installErr
		},
	}
}
