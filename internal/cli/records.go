package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/claim"
	"github.com/roach88/claimgraph/internal/records"
)

// DefaultIDPrefix prefixes record ids derived from file names.
const DefaultIDPrefix = "urn:claimgraph:record:"

// RecordsImportOptions holds flags for records import.
type RecordsImportOptions struct {
	*RootOptions
	ID       string
	IDPrefix string
	NoGraph  bool
}

// ImportResult reports what happened to one imported file.
type ImportResult struct {
	File   string `json:"file"`
	Hash   string `json:"hash,omitempty"`
	ID     string `json:"id,omitempty"`
	Claims int    `json:"claims"`
	Status string `json:"status"` // "imported", "unchanged" or "failed"
	Error  string `json:"error,omitempty"`
}

// NewRecordsCommand creates the records command group.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the authoritative record store",
	}
	cmd.AddCommand(newRecordsImportCommand(rootOpts))
	cmd.AddCommand(newRecordsRevokeCommand(rootOpts))
	return cmd
}

func newRecordsImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import credential documents as records",
		Long: `Store each file as an active record and add its claims to the graph.

A document is N-Triples or JSON ({"claims":[{"s":..,"p":..,"o":..}]}).
The record id, which becomes the credential subject of its claims, is
--id for a single file, otherwise the id prefix followed by the file name
without its extension. Importing an unchanged document is a no-op.

Example:
  claimgraph records import ./credentials/*.nt
  claimgraph records import --id https://example.org/credentials/7 cred.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordsImport(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record id (only with a single file)")
	cmd.Flags().StringVar(&opts.IDPrefix, "id-prefix", DefaultIDPrefix, "prefix for ids derived from file names")
	cmd.Flags().BoolVar(&opts.NoGraph, "no-graph", false, "store records without adding claims to the graph")

	return cmd
}

func runRecordsImport(cmd *cobra.Command, opts *RecordsImportOptions, files []string) error {
	if opts.ID != "" && len(files) > 1 {
		return NewExitError(ExitCommandError, "--id can only be used with a single file")
	}

	a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.closeLogged()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]ImportResult, 0, len(files))
	failed := 0
	for _, file := range files {
		id := opts.ID
		if id == "" {
			base := filepath.Base(file)
			id = opts.IDPrefix + strings.TrimSuffix(base, filepath.Ext(base))
		}
		res := importFile(ctx, a, file, id, !opts.NoGraph)
		if res.Status == "failed" {
			failed++
		}
		results = append(results, res)
	}

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if err := f.Emit(results, func(w io.Writer) {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(w, "%-9s %s: %s\n", r.Status, r.File, r.Error)
				continue
			}
			fmt.Fprintf(w, "%-9s %s -> %s (%d claims)\n", r.Status, r.File, r.ID, r.Claims)
		}
	}); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d files failed to import", failed, len(files)))
	}
	return nil
}

func importFile(ctx context.Context, a *app, file, id string, addToGraph bool) ImportResult {
	res := ImportResult{File: file, ID: id}
	fail := func(err error) ImportResult {
		res.Status = "failed"
		res.Error = err.Error()
		a.logger.Warn("record import failed", "file", file, "error", err)
		return res
	}

	doc, err := os.ReadFile(file)
	if err != nil {
		return fail(err)
	}
	claims, err := a.claims.ExtractClaims(ctx, doc)
	if err != nil {
		return fail(err)
	}
	res.Claims = len(claims)
	res.Hash = records.Hash(doc)
	if err := claim.Validate(claims); err != nil {
		return fail(err)
	}

	if existing, err := a.records.GetByHash(ctx, res.Hash); err == nil {
		res.ID = existing.ID
		res.Status = "unchanged"
		return res
	} else if !errors.Is(err, records.ErrNotFound) {
		return fail(err)
	}

	if _, err := a.records.Put(ctx, records.NewRecord(id, doc)); err != nil {
		return fail(err)
	}
	if addToGraph {
		if err := a.graph.AddClaims(ctx, claims, id); err != nil {
			return fail(fmt.Errorf("record stored but claims not added, run rebuild: %w", err))
		}
	}

	a.logger.Debug("record imported", "file", file, "hash", res.Hash, "id", id, "claims", len(claims))
	res.Status = "imported"
	return res
}

func newRecordsRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <hash>",
		Short: "Revoke a record and remove its claims from the graph",
		Args:  cobra.ExactArgs(1),
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

			rec, err := a.records.GetByHash(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load record", err)
			}
			if err := a.records.SetStatus(ctx, rec.Hash, records.StatusRevoked); err != nil {
				return WrapExitError(ExitFailure, "failed to revoke record", err)
			}
			if err := a.graph.DeleteClaims(ctx, rec.ID); err != nil {
				return WrapExitError(ExitFailure, "record revoked but claims not removed", err)
			}

			f := newFormatter(rootOpts, cmd.OutOrStdout())
			return f.Emit(map[string]string{"hash": rec.Hash, "id": rec.ID, "status": string(records.StatusRevoked)},
				func(w io.Writer) { fmt.Fprintf(w, "revoked %s (%s)\n", rec.Hash, rec.ID) })
		},
	}
}
