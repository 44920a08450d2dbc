package sql

import (
	"context"

	"github.com/syssam/veloq/dialect"
)

// Execute compiles the query and executes it once on exec. Compilation
// errors are returned before exec is called. The result and error of exec
// are returned unchanged.
func (q *Query) Execute(ctx context.Context, exec dialect.Executor) (*dialect.Result, error) {
	s, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, s.Query, s.Params)
}
