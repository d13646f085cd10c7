package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/rebuild"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Compare the claim graph with the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.closeLogged()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st := a.orchestrator.Assess(ctx)

			f := newFormatter(rootOpts, cmd.OutOrStdout())
			return f.Emit(st, func(w io.Writer) { printGraphStatus(w, st) })
		},
	}
}

func printGraphStatus(w io.Writer, st rebuild.GraphStatus) {
	fmt.Fprintf(w, "backend:        %s\n", st.Backend)
	fmt.Fprintf(w, "enabled:        %t\n", st.Enabled)
	fmt.Fprintf(w, "healthy:        %t\n", st.Healthy)
	fmt.Fprintf(w, "active records: %d\n", st.ActiveRecords)
	fmt.Fprintf(w, "claims:         %d\n", st.ClaimCount)
	fmt.Fprintf(w, "sync:           %s\n", st.Sync)
}
