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

// Package cli implements the meshd command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/systemorph/meshweaver/config"
	"github.com/systemorph/meshweaver/mesh"
	"github.com/systemorph/meshweaver/module"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the flags shared by every command
type RootOptions struct {
	ConfigPath string
	Format     string

	// Builtins are the modules compiled into the binary, reachable as builtin:<name>
	Builtins *module.Registry
	// MeshOptions are applied to every mesh the commands build
	MeshOptions []mesh.Option
}

// NewRootCommand creates the meshd root command
func NewRootCommand(builtins *module.Registry, meshOptions ...mesh.Option) *cobra.Command {
	if builtins == nil {
		builtins = module.NewRegistry()
	}
	opts := &RootOptions{Builtins: builtins, MeshOptions: meshOptions}

	cmd := &cobra.Command{
		Use:   "meshd",
		Short: "meshd runs a node of a hub mesh",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "mesh.yaml", "path to the mesh configuration")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewNodesCommand(opts))
	cmd.AddCommand(NewInstallCommand(opts))
	return cmd
}

// source returns the builtin modules followed by the plugin loader
func (o *RootOptions) source() module.Source {
	return module.Sources{o.Builtins, module.NewPluginSource()}
}

// open loads the configuration and builds the mesh it describes
func (o *RootOptions) open(ctx context.Context) (*config.Config, *mesh.Mesh, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	opts := append([]mesh.Option{mesh.WithModuleSource(o.source())}, o.MeshOptions...)
	m, err := mesh.FromConfig(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, m, nil
}
