package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	File         string
	VectorConfig string
	Driver       string // postgres | mysql | sqlite
	DSN          string
	SlowQuery    time.Duration
}

// ExecResult is the output of the exec command.
type ExecResult struct {
	Query    string           `json:"query"`
	Params   []any            `json:"params"`
	RowCount int64            `json:"row_count"`
	Rows     []map[string]any `json:"rows,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec -f <query.yaml> --driver <name> --dsn <dsn>",
		Short: "Execute a query file",
		Long: `Compile a YAML query file for the dialect of the driver, and execute it.

Supported drivers are postgres (lib/pq), mysql (go-sql-driver/mysql) and
sqlite (modernc.org/sqlite).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExec(opts, cmd)
		},
	}

	addQueryFlags(cmd, &opts.File, &opts.VectorConfig)
	cmd.Flags().StringVar(&opts.Driver, "driver", dialect.SQLite, "database driver (postgres|mysql|sqlite)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.Flags().DurationVar(&opts.SlowQuery, "slow", 100*time.Millisecond, "slow query threshold")
	_ = cmd.MarkFlagRequired("dsn")

	return cmd
}

// openDSN validates dsn for the driver and returns the driver name and the
// data source to pass to database/sql.
func openDSN(driver, dsn string) (string, error) {
	switch driver {
	case dialect.Postgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return pq.ParseURL(dsn)
		}
		return dsn, nil
	case dialect.MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	case dialect.SQLite:
		return dsn, nil
	default:
		return "", fmt.Errorf("unknown driver %q", driver)
	}
}

func runExec(opts *ExecOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	qf, err := LoadQueryFile(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading query file", err)
	}
	source, err := openDSN(opts.Driver, opts.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "parsing dsn", err)
	}
	q, err := buildQuery(qf, opts.Driver, opts.VectorConfig)
	if err != nil {
		return WrapExitError(ExitCommandError, "building query", err)
	}
	s, err := q.ToSQL()
	if err != nil {
		return formatter.Error("compiling query", err)
	}
	drv, err := sql.Open(opts.Driver, source)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer drv.Close()

	stats := &sql.QueryStats{}
	logger := opts.logger()
	adapter := sql.NewAdapter(drv, sql.WithInterceptors(
		sql.Logging(logger),
		sql.Stats(stats, sql.WithSlowThreshold(opts.SlowQuery), sql.WithSlowQueryHook(func(_ context.Context, query string, _ []any, d time.Duration) {
			logger.Warn("slow query detected", "duration", d, "query", query)
		})),
	))
	res, err := q.Execute(cmd.Context(), adapter)
	if err != nil {
		return formatter.Error("executing query", err)
	}
	logger.Debug("query stats", "stats", stats.Stats().String())

	out := ExecResult{Query: s.Query, Params: s.Params, RowCount: res.RowCount}
	for _, r := range res.Rows {
		out.Rows = append(out.Rows, r.Map())
	}
	return formatter.Success(out, func(w io.Writer) {
		enc := json.NewEncoder(w)
		for _, r := range out.Rows {
			_ = enc.Encode(r)
		}
		fmt.Fprintf(w, "(%d rows)\n", res.RowCount)
	})
}
