package schema

import (
	"encoding/json"
	"strings"
)

// ForeignKey names the parent table and column a column references.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Column describes one column of a declared table: its store-native type
// name plus constraint flags. A Column is immutable once constructed;
// build one with NewColumn and options.
type Column struct {
	name       string
	dataType   string
	notNull    bool
	unique     bool
	primaryKey bool
	foreignKey *ForeignKey
}

// ColumnOption configures a Column during construction.
type ColumnOption func(*Column)

// NotNull marks the column NOT NULL.
func NotNull() ColumnOption {
	return func(c *Column) { c.notNull = true }
}

// Unique marks the column UNIQUE.
func Unique() ColumnOption {
	return func(c *Column) { c.unique = true }
}

// PrimaryKey marks the column PRIMARY KEY. No consistency checking against
// the other flags happens here; that is the caller's responsibility.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.primaryKey = true }
}

// References adds a foreign key to table(column).
func References(table, column string) ColumnOption {
	return func(c *Column) { c.foreignKey = &ForeignKey{Table: table, Column: column} }
}

// NewColumn constructs an immutable Column with the given name and
// store-native type name (e.g. "TEXT", "INTEGER").
func NewColumn(name, dataType string, opts ...ColumnOption) Column {
	c := Column{name: name, dataType: dataType}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Column) Name() string     { return c.name }
func (c Column) DataType() string { return c.dataType }
func (c Column) IsNotNull() bool  { return c.notNull }
func (c Column) IsUnique() bool   { return c.unique }
func (c Column) IsPrimary() bool  { return c.primaryKey }

// ForeignKey returns a copy of the column's foreign key, if any.
func (c Column) ForeignKey() (ForeignKey, bool) {
	if c.foreignKey == nil {
		return ForeignKey{}, false
	}
	return *c.foreignKey, true
}

// Equivalent reports whether two columns describe the same structure under
// the relaxed rules used for drift comparison: the type name is compared
// case-insensitively, and when both columns are primary keys the unique and
// not-null flags are ignored (a primary key implies both). Foreign keys
// must match exactly.
func (c Column) Equivalent(o Column) bool {
	if c.name != o.name {
		return false
	}
	if !strings.EqualFold(c.dataType, o.dataType) {
		return false
	}
	if c.primaryKey != o.primaryKey {
		return false
	}
	if !c.primaryKey {
		if c.notNull != o.notNull || c.unique != o.unique {
			return false
		}
	}
	switch {
	case c.foreignKey == nil && o.foreignKey == nil:
		return true
	case c.foreignKey == nil || o.foreignKey == nil:
		return false
	default:
		return *c.foreignKey == *o.foreignKey
	}
}

// MarshalJSON renders the column for the describe surface.
func (c Column) MarshalJSON() ([]byte, error) {
	out := struct {
		Name       string      `json:"name"`
		DataType   string      `json:"type"`
		NotNull    bool        `json:"not_null"`
		Unique     bool        `json:"unique"`
		PrimaryKey bool        `json:"primary_key"`
		References *ForeignKey `json:"references,omitempty"`
	}{
		Name:       c.name,
		DataType:   c.dataType,
		NotNull:    c.notNull,
		Unique:     c.unique,
		PrimaryKey: c.primaryKey,
		References: c.foreignKey,
	}
	return json.Marshal(out)
}
