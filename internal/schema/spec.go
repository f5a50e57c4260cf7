// Package schema holds the caller-supplied declaration of the managed
// tables: column descriptors, table descriptors, and the ordered Spec the
// reconciler works from. Everything here is a pure immutable value; no I/O.
package schema

import "github.com/tessera-db/tessera/internal/errs"

// Spec is the ordered set of declared tables. The order must already
// respect foreign-key dependency (parents before children) — Tessera does
// not topologically sort it; table creation and snapshot restore both walk
// the Spec in declared order.
type Spec struct {
	tables []Table
	byName map[string]int
}

// NewSpec constructs an immutable Spec. Table names must be unique.
func NewSpec(tables ...Table) (Spec, error) {
	byName := make(map[string]int, len(tables))
	for i, t := range tables {
		if _, dup := byName[t.name]; dup {
			return Spec{}, errs.Newf(errs.KindInvalidInput,
				"spec declares table %q twice", t.name)
		}
		byName[t.name] = i
	}
	return Spec{tables: tables, byName: byName}, nil
}

// MustSpec is NewSpec that panics on error.
func MustSpec(tables ...Table) Spec {
	s, err := NewSpec(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Tables returns the declared tables in dependency order. The slice is a copy.
func (s Spec) Tables() []Table {
	out := make([]Table, len(s.tables))
	copy(out, s.tables)
	return out
}

// Table returns the named table, if declared.
func (s Spec) Table(name string) (Table, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Table{}, false
	}
	return s.tables[i], true
}

// HasTable reports whether the spec declares the named table.
func (s Spec) HasTable(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// TableNames returns the declared table names in dependency order.
func (s Spec) TableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.name
	}
	return names
}

// Len returns the number of declared tables.
func (s Spec) Len() int { return len(s.tables) }
