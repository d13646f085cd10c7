package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
		Long: `Configuration sources, highest priority first:
  1. Environment variables (CLAIMGRAPH_*, e.g. CLAIMGRAPH_GRAPH_BACKEND=none)
  2. Config file (--config, default ./` + config.DefaultPath + `)
  3. Defaults`,
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			out, err := cfg.YAML()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render config", err)
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout())
			return f.Emit(cfg, func(w io.Writer) { _, _ = w.Write(out) })
		},
	}
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if path == "" {
				path = config.DefaultPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return WrapExitError(ExitCommandError, "failed to check config file", err)
			}

			out, err := config.Default().YAML()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render config", err)
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}

			f := newFormatter(rootOpts, cmd.OutOrStdout())
			return f.Emit(map[string]string{"path": path},
				func(w io.Writer) { fmt.Fprintf(w, "Wrote %s\n", path) })
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
