package database

import (
	"context"
	"fmt"

	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/schema"
)

// Introspector reconstructs table descriptors from the store's catalog
// metadata. It backs the external describe capability and the connect-time
// drift comparison.
type Introspector struct {
	q Querier
}

// NewIntrospector returns an Introspector reading through q.
func NewIntrospector(q Querier) *Introspector {
	return &Introspector{q: q}
}

// ListTables returns all user-defined table names in the public schema.
func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := in.q.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Wrap(errs.KindQueryFailed, "scan table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryFailed, "iterate table names", err)
	}
	return tables, nil
}

// Describe reconstructs the descriptor of a live table from two catalog
// queries: one for column name, declared type, and nullability, and one for
// constraints, joined back onto the columns by name. CHECK constraints are
// ignored. A table with no catalog columns is not present.
func (in *Introspector) Describe(ctx context.Context, table string) (schema.Table, error) {
	cols, err := in.fetchColumns(ctx, table)
	if err != nil {
		return schema.Table{}, err
	}
	if len(cols) == 0 {
		return schema.Table{}, errs.Newf(errs.KindTableNotPresent,
			"table %q does not exist", table)
	}

	if err := in.applyConstraints(ctx, table, cols); err != nil {
		return schema.Table{}, err
	}

	out := make([]schema.Column, len(cols))
	for i, c := range cols {
		var opts []schema.ColumnOption
		if c.notNull {
			opts = append(opts, schema.NotNull())
		}
		if c.unique {
			opts = append(opts, schema.Unique())
		}
		if c.primary {
			opts = append(opts, schema.PrimaryKey())
		}
		if c.fk != nil {
			opts = append(opts, schema.References(c.fk.Table, c.fk.Column))
		}
		out[i] = schema.NewColumn(c.name, c.dataType, opts...)
	}
	return schema.NewTable(table, out...)
}

// columnState accumulates catalog facts about one column before the
// immutable descriptor is built.
type columnState struct {
	name     string
	dataType string
	notNull  bool
	unique   bool
	primary  bool
	fk       *schema.ForeignKey
}

func (in *Introspector) fetchColumns(ctx context.Context, table string) ([]*columnState, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name   = $1
		ORDER BY ordinal_position`

	rows, err := in.q.Query(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*columnState
	for rows.Next() {
		var (
			c        columnState
			nullable bool
		)
		if err := rows.Scan(&c.name, &c.dataType, &nullable); err != nil {
			return nil, errs.Wrap(errs.KindQueryFailed, "scan column info", err)
		}
		c.notNull = !nullable
		cols = append(cols, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryFailed, "iterate column info", err)
	}
	return cols, nil
}

// applyConstraints folds the table's constraint listing onto the column
// states. The LEFT JOINs keep constraint kinds with no key-column rows
// (CHECK) visible, so the kind switch below sees every kind the store
// reports.
func (in *Introspector) applyConstraints(ctx context.Context, table string, cols []*columnState) error {
	const q = `
		SELECT tc.constraint_type,
		       kcu.column_name,
		       ccu.table_name  AS ref_table,
		       ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name  = ccu.constraint_name
		 AND tc.constraint_type  = 'FOREIGN KEY'
		WHERE tc.table_schema = 'public'
		  AND tc.table_name   = $1`

	byName := make(map[string]*columnState, len(cols))
	for _, c := range cols {
		byName[c.name] = c
	}

	rows, err := in.q.Query(ctx, q, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind                        string
			column, refTable, refColumn *string
		)
		if err := rows.Scan(&kind, &column, &refTable, &refColumn); err != nil {
			return errs.Wrap(errs.KindQueryFailed, "scan constraint info", err)
		}

		switch kind {
		case "CHECK":
			// Includes the implicit NOT NULL checks the store synthesizes.
			continue
		case "PRIMARY KEY", "UNIQUE", "FOREIGN KEY":
			if column == nil {
				continue
			}
			c, ok := byName[*column]
			if !ok {
				continue
			}
			switch kind {
			case "PRIMARY KEY":
				c.primary = true
			case "UNIQUE":
				c.unique = true
			case "FOREIGN KEY":
				if refTable != nil && refColumn != nil {
					c.fk = &schema.ForeignKey{Table: *refTable, Column: *refColumn}
				}
			}
		default:
			// The catalog contract admits exactly four kinds. Anything else
			// is an internal invariant violation, not a recoverable error.
			panic(fmt.Sprintf("introspect %q: unknown constraint kind %q", table, kind))
		}
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.KindQueryFailed, "iterate constraint info", err)
	}
	return nil
}
