package veloq

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors describing why a query could not be built or compiled.
// They are always returned wrapped in a *ConfigError.
var (
	// ErrKindFixed is returned when Select, Insert, Update or Delete is
	// called on a query whose kind was already set.
	ErrKindFixed = errors.New("query kind already fixed")

	// ErrNoKind is returned when a query is compiled before its kind was set.
	ErrNoKind = errors.New("query kind not set")

	// ErrNoTarget is returned when a query has no target table.
	ErrNoTarget = errors.New("query target not set")

	// ErrEmptyPayload is returned when an INSERT or UPDATE has no assignments.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrNegativeLimit is returned for a negative LIMIT.
	ErrNegativeLimit = errors.New("limit must be non-negative")

	// ErrNegativeOffset is returned for a negative OFFSET.
	ErrNegativeOffset = errors.New("offset must be non-negative")

	// ErrInvalidOperator is returned for an unsupported comparison operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrArgCount is returned when a raw expression or an embedded statement
	// has a different number of placeholders than arguments.
	ErrArgCount = errors.New("placeholder and argument count mismatch")

	// ErrInvalidIdentifier is returned when a name that is spliced into
	// generated SQL is not a plain identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrCompiled is returned when a query is mutated after it was compiled.
	ErrCompiled = errors.New("query already compiled")

	// ErrNoVectorDB is returned when a vector operation is compiled and
	// neither a per-query override nor an active vector dialect is set.
	ErrNoVectorDB = errors.New("no vector dialect configured")

	// ErrUnknownVectorDB is returned when a vector dialect name is not registered.
	ErrUnknownVectorDB = errors.New("unknown vector dialect")

	// ErrInvalidVector is returned for an empty vector or one holding NaN or Inf.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrInvalidWeights is returned for a malformed hybrid ranking weight map.
	ErrInvalidWeights = errors.New("invalid hybrid ranking weights")

	// ErrInvalidConfig is returned when a vector dialect config is incomplete.
	ErrInvalidConfig = errors.New("invalid vector dialect config")

	// ErrRegistryFrozen is returned when a frozen registry is mutated.
	ErrRegistryFrozen = errors.New("vector registry is frozen")

	// ErrUnknownTable is returned when schema validation cannot find a table.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when schema validation cannot find a column,
	// or the column has the wrong type for the operation.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnsupported is returned when a clause is not supported by the dialect.
	ErrUnsupported = errors.New("unsupported by dialect")

	// ErrNilSubquery is returned when a nil *Query is used as a subquery.
	ErrNilSubquery = errors.New("nil subquery")

	// ErrLeadingOr is returned when the first predicate of a query is OR-ed.
	ErrLeadingOr = errors.New("OR predicate without a preceding predicate")
)

// ConfigError reports a mistake in how a query or the vector registry was
// configured. Configuration errors are raised while building or compiling,
// never during adapter I/O, so a caller may fix and resubmit the query.
type ConfigError struct {
	Op  string // Operation that failed (e.g. "Limit", "HybridRanking").
	Err error  // Underlying sentinel or detail error.
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("veloq: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("veloq: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError returns a new ConfigError for the given operation.
func NewConfigError(op string, err error) *ConfigError {
	return &ConfigError{Op: op, Err: err}
}

// ConfigErrorf returns a ConfigError whose message is formatted and wraps sentinel.
func ConfigErrorf(op string, sentinel error, format string, a ...any) *ConfigError {
	return &ConfigError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, a...)...)}
}

// IsConfigError returns true if the error is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("veloq: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "veloq: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("veloq: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As
// inspect every one of them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
