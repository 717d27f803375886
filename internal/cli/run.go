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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/module"
)

const shutdownTimeout = 30 * time.Second

// NewRunCommand creates the run command
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a mesh node",
		Long: `Start a mesh node from its configuration.

The node seeds its catalog with the configured nodes, installs the configured
modules and, when modules_dir is set, installs every module dropped into it.
It runs until interrupted.

Example:
  meshd run --config ./mesh.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
}

func run(ctx context.Context, opts *RootOptions) (err error) {
	cfg, m, err := opts.open(ctx)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, m.Stop(stopCtx))
	}()

	if err := m.Start(ctx); err != nil {
		return err
	}
	// a broken module does not keep the node down
	_ = m.Bootstrap(ctx, cfg.Modules...)

	if cfg.ModulesDir != "" {
		watcher := module.NewWatcher(cfg.ModulesDir, func(ctx context.Context, location string) error {
			_, err := m.InstallModule(ctx, location)
			return err
		}, module.WithWatcherLogger(logger))
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, watcher.Stop())
		}()
	}

	logger.Infof("mesh=(%s) running", m.Name())
	<-ctx.Done()
	logger.Infof("mesh=(%s) shutting down", m.Name())
	return nil
}
