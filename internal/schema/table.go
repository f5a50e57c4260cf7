package schema

import (
	"encoding/json"

	"github.com/tessera-db/tessera/internal/errs"
)

// Table describes one declared table: its name and its columns in the order
// they were declared. Column order determines the column order of generated
// DDL and DML. Construct a Table with NewTable; it is immutable afterwards.
type Table struct {
	name    string
	columns []Column
	byName  map[string]int
}

// NewTable constructs an immutable Table. Column names must be unique
// within the table.
func NewTable(name string, columns ...Column) (Table, error) {
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := byName[c.name]; dup {
			return Table{}, errs.Newf(errs.KindInvalidInput,
				"table %q declares column %q twice", name, c.name)
		}
		byName[c.name] = i
	}
	return Table{name: name, columns: columns, byName: byName}, nil
}

// MustTable is NewTable that panics on error. Intended for statically known
// schema declarations and tests.
func MustTable(name string, columns ...Column) Table {
	t, err := NewTable(name, columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) Name() string { return t.name }

// Columns returns the declared columns in order. The slice is a copy.
func (t Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumColumns returns the number of declared columns.
func (t Table) NumColumns() int { return len(t.columns) }

// Column returns the named column, if declared.
func (t Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Equivalent reports whether two tables describe the same structure under
// the relaxed column equality of Column.Equivalent. Column order matters:
// the catalog reports columns in creation order, so a reordering is drift.
func (t Table) Equivalent(o Table) bool {
	if t.name != o.name || len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		if !t.columns[i].Equivalent(o.columns[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the table for the describe surface.
func (t Table) MarshalJSON() ([]byte, error) {
	out := struct {
		Name    string   `json:"name"`
		Columns []Column `json:"columns"`
	}{Name: t.name, Columns: t.columns}
	return json.Marshal(out)
}
