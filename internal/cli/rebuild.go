package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/rebuild"
)

// RebuildOptions holds flags for the rebuild command. Zero values fall back
// to the configuration.
type RebuildOptions struct {
	*RootOptions
	ChunkCount int
	ChunkID    int
	Threads    int
	BatchSize  int
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RebuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the claim graph from the record store",
		Long: `Re-derive graph claims from every active record and wait for the run
to finish.

Records are split into chunks by hash; --chunk-count and --chunk-id select
one chunk so several processes can share the work.

Example:
  claimgraph rebuild
  claimgraph rebuild --chunk-count 4 --chunk-id 1 --threads 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.ChunkCount, "chunk-count", 1, "number of chunks the keyspace is split into")
	cmd.Flags().IntVar(&opts.ChunkID, "chunk-id", 0, "chunk to rebuild, in [0, chunk-count)")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "worker count (default rebuild.threads)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "records fetched per page (default rebuild.batch_size)")

	return cmd
}

func runRebuild(cmd *cobra.Command, opts *RebuildOptions) error {
	a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.closeLogged()

	ropts := a.rebuildOptions()
	ropts.ChunkCount = opts.ChunkCount
	ropts.ChunkID = opts.ChunkID
	if opts.Threads > 0 {
		ropts.Threads = opts.Threads
	}
	if opts.BatchSize > 0 {
		ropts.BatchSize = opts.BatchSize
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	started, err := a.orchestrator.Trigger(ctx, ropts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start rebuild", err)
	}
	if !started {
		return NewExitError(ExitFailure, "a rebuild is already running")
	}
	if err := awaitRun(ctx, a.orchestrator); err != nil {
		return WrapExitError(ExitFailure, "rebuild interrupted", err)
	}

	snap := a.orchestrator.Status()
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if err := f.Emit(snap, func(w io.Writer) { printSnapshot(w, snap) }); err != nil {
		return err
	}
	if snap.FailedRun {
		return NewExitError(ExitFailure, "rebuild failed")
	}
	return nil
}

// awaitRun waits for the current run. When ctx ends first the run is
// cancelled and drained, so no worker outlives the stores it writes to.
func awaitRun(ctx context.Context, o *rebuild.Orchestrator) error {
	err := o.Wait(ctx)
	if err == nil {
		return nil
	}
	o.Cancel()
	_ = o.Wait(context.WithoutCancel(ctx))
	return err
}

func printSnapshot(w io.Writer, snap rebuild.Snapshot) {
	fmt.Fprintf(w, "Run %s: %d/%d records processed (%d succeeded, %d failed) in %dms\n",
		snap.RunID, snap.Processed, snap.Total, snap.Succeeded, snap.Failed, snap.DurationMs)
	if snap.ErrorMessage != nil {
		fmt.Fprintf(w, "Error: %s\n", *snap.ErrorMessage)
	}
}
