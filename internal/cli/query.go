package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/query"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	ContentType string
	File        string
	Timeout     time.Duration
	Federated   bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [statement]",
		Short: "Run a query against the claim graph",
		Long: `Run a query against the local claim graph, or across partners with
--federated.

The statement is taken from the argument, from --file, or from stdin when
--file is "-". Results are printed as JSON rows.

Example:
  claimgraph query "SELECT subject, object FROM claims WHERE predicate = 'http://schema.org/name'"
  claimgraph query --file report.sql --timeout 30s
  claimgraph query --federated "SELECT count(*) AS n FROM claims"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.ContentType, "content-type", "application/sql", "query content type, selects the language")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", `read the statement from a file ("-" for stdin)`)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "query timeout (default query.default_timeout)")
	cmd.Flags().BoolVar(&opts.Federated, "federated", false, "also search configured partners")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, args []string) error {
	text, err := readStatement(cmd.InOrStdin(), opts.File, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read statement", err)
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

	var res graph.Results
	if opts.Federated {
		lang, err := graph.LanguageFromContentType(opts.ContentType)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid content type", err)
		}
		st := &federation.Statement{
			Statement:   text,
			Annotations: map[string]any{federation.AnnotationQueryLanguage: string(lang)},
		}
		if opts.Timeout > 0 {
			st.Annotations[federation.AnnotationTimeout] = opts.Timeout.Seconds()
		}
		res, err = a.gateway.Search(ctx, st)
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
	} else {
		res, err = a.queries.Query(ctx, query.Request{
			Body:           text,
			ContentType:    opts.ContentType,
			Timeout:        opts.Timeout,
			WithTotalCount: true,
		})
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
	}

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	return f.Emit(res, func(w io.Writer) { printResults(w, res) })
}

func readStatement(stdin io.Reader, file string, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("give the statement as an argument or with --file, not both")
	case len(args) == 1:
		data = []byte(args[0])
	case file == "-":
		data, err = io.ReadAll(stdin)
	case file != "":
		data, err = os.ReadFile(file)
	default:
		return "", fmt.Errorf("no statement given")
	}
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("statement is empty")
	}
	return text, nil
}

func printResults(w io.Writer, res graph.Results) {
	enc := json.NewEncoder(w)
	for _, item := range res.Items {
		_ = enc.Encode(item)
	}
	fmt.Fprintf(w, "(%d rows)\n", res.TotalCount)
}
