package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/dialect/sql/vector"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	File         string // query file path
	Dialect      string // overrides the file dialect
	VectorConfig string // vector registry file path
}

// CompileResult is the output of the compile command.
type CompileResult struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile -f <query.yaml>",
		Short: "Compile a query file to SQL",
		Long: `Compile a YAML query file to parameterized SQL.

The query text and its parameters are printed without touching any database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(opts, cmd)
		},
	}

	addQueryFlags(cmd, &opts.File, &opts.VectorConfig)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (postgres|mysql|sqlite), defaults to the file dialect")

	return cmd
}

func addQueryFlags(cmd *cobra.Command, file, vectorConfig *string) {
	cmd.Flags().StringVarP(file, "file", "f", "", "query file path")
	cmd.Flags().StringVar(vectorConfig, "vector-config", "", "vector registry file path")
	_ = cmd.MarkFlagRequired("file")
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	qf, err := LoadQueryFile(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading query file", err)
	}
	name := orDefault(opts.Dialect, orDefault(qf.Dialect, dialect.Postgres))
	q, err := buildQuery(qf, name, opts.VectorConfig)
	if err != nil {
		return WrapExitError(ExitCommandError, "building query", err)
	}
	s, err := q.ToSQL()
	if err != nil {
		return formatter.Error("compiling query", err)
	}
	opts.logger().Debug("query compiled", "dialect", name, "params", len(s.Params))
	return formatter.Success(CompileResult{Query: s.Query, Params: s.Params}, func(w io.Writer) {
		fmt.Fprintln(w, s.Query)
		fmt.Fprintln(w, formatParams(s.Params))
	})
}

// buildQuery builds the query of qf for the given SQL dialect, with a frozen
// registry holding the built-in vector dialects and those of the vector
// config file.
func buildQuery(qf *QueryFile, name, vectorConfig string) (*sql.Query, error) {
	reg := vector.NewRegistry(vector.WithBuiltins(), vector.WithActive(defaultVectorDB(name)))
	if err := reg.Err(); err != nil {
		return nil, err
	}
	if vectorConfig != "" {
		if err := vector.LoadFile(vectorConfig, reg); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return qf.Build(sql.WithDialect(name), sql.WithVectorRegistry(reg))
}
