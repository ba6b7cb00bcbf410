package apperrors

import "errors"

var (
	// ErrPermissionDenied is returned when a query's statement kind is not
	// permitted for the caller's role.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsafeQuery is returned when a query cannot be classified into a
	// known statement kind, or carries multi-statement/injection markers.
	ErrUnsafeQuery = errors.New("unsafe query")

	// ErrExecutionFailure is returned when the underlying engine rejected a
	// query. Wrapping sites preserve the engine's original message.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrNoJoinPath is returned when a unified-model query joins two datasets
	// with no relationship edge between them.
	ErrNoJoinPath = errors.New("no join path between datasets")

	// ErrProfilingUnavailable is returned when the requested dataset or
	// column is not present, so no statistic can be produced.
	ErrProfilingUnavailable = errors.New("profiling unavailable")

	ErrNotFound    = errors.New("not found")
	ErrInvalidRole = errors.New("invalid role")
)
