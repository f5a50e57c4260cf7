package database

import "context"

// Querier is the narrow contract the reconciler and introspector need from
// the live store. The pgx pool implements it; tests substitute fakes.
// Layers above this package never import pgx directly.
type Querier interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query runs a statement that returns rows. Callers must Close the
	// result, even on error during iteration.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Close releases all resources held by the connection pool.
	Close()
}

// Rows is an abstraction over a query result set.
type Rows interface {
	// Next advances to the next row; false when exhausted or on error.
	Next() bool

	// Scan copies the current row's columns into the destinations.
	Scan(dest ...any) error

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
