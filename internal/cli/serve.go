package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/api"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once listening (for tests).
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(rootOpts, nil)
}

func newServeCommand(rootOpts *RootOptions, ready chan<- string) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts, ready: ready}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries, federated search and graph administration over HTTP",
		Long: `Start the HTTP server.

On startup the graph is compared with the record store; when the graph is
empty but active records exist and graph.auto_rebuild_on_empty is set, a
full rebuild starts in the background.

Example:
  claimgraph serve --config ./claimgraph.yaml
  claimgraph serve --addr :9090 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.closeLogged()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.orchestrator.CheckOnStartup(ctx, a.cfg.Graph.AutoRebuildOnEmpty); err != nil {
		a.logger.Warn("startup rebuild not started", "error", err)
	}

	addr := a.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler: api.New(a.queries, a.gateway, a.orchestrator,
			api.WithLogger(a.logger),
			api.WithMetrics(a.metrics.Handler()),
			api.WithRebuildDefaults(a.rebuildOptions()),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.logger.Info("server listening", "addr", ln.Addr().String(), "backend", a.cfg.Backend())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}

	a.orchestrator.Cancel()
	if err := a.orchestrator.Wait(shutdownCtx); err != nil {
		a.logger.Warn("rebuild did not stop in time", "error", err)
	}

	a.logger.Info("server stopped")
	return nil
}
