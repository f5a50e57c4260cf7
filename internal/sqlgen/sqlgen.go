// Package sqlgen turns table descriptors plus row data into PostgreSQL
// statement text for create, select, insert, and drop. Clause ordering and
// identifier quoting are part of the contract: callers byte-compare
// regenerated statements, so nothing here may reorder or reformat.
package sqlgen

import (
	"strings"

	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/row"
	"github.com/tessera-db/tessera/internal/schema"
)

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard),
// doubling any embedded quote. This safely handles reserved words and
// mixed-case names.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BuildCreate produces the CREATE TABLE statement for a declared table:
// comma-joined column clauses in declared order, each clause being the
// quoted name, the type, then (when set, in this fixed order) NOT NULL,
// UNIQUE, PRIMARY KEY, REFERENCES "table"("column").
func BuildCreate(t schema.Table) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(QuoteIdent(t.Name()))
	sb.WriteString(" (")
	for i, c := range t.Columns() {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(QuoteIdent(c.Name()))
		sb.WriteString(" ")
		sb.WriteString(c.DataType())
		if c.IsNotNull() {
			sb.WriteString(" NOT NULL")
		}
		if c.IsUnique() {
			sb.WriteString(" UNIQUE")
		}
		if c.IsPrimary() {
			sb.WriteString(" PRIMARY KEY")
		}
		if fk, ok := c.ForeignKey(); ok {
			sb.WriteString(" REFERENCES ")
			sb.WriteString(QuoteIdent(fk.Table))
			sb.WriteString("(")
			sb.WriteString(QuoteIdent(fk.Column))
			sb.WriteString(")")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// BuildSelect produces a SELECT statement. An empty columns slice selects
// the wildcard; a non-empty one is validated against the table's declared
// columns and fails with a columns-not-present error listing the missing
// names in input order. predicateSuffix is raw trailing SQL (for example
// `WHERE "id" = $1`) appended after the FROM clause; empty means none.
func BuildSelect(t schema.Table, columns []string, predicateSuffix string) (string, error) {
	if err := checkColumns(t, columns); err != nil {
		return "", err
	}

	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = QuoteIdent(c)
		}
		cols = strings.Join(quoted, ",")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(t.Name()))
	if predicateSuffix != "" {
		sb.WriteString(" ")
		sb.WriteString(predicateSuffix)
	}
	return sb.String(), nil
}

// BuildSelectAsJSON produces a SELECT whose single result column is the
// ROW_TO_JSON aggregate of each row. With no column restriction and no
// predicate it emits the single-pass form; otherwise it wraps BuildSelect's
// output in a subselect aliased back to the table name so ROW_TO_JSON sees
// the same shape. Both forms yield row-equivalent result sets.
func BuildSelectAsJSON(t schema.Table, columns []string, predicateSuffix string) (string, error) {
	quoted := QuoteIdent(t.Name())
	if len(columns) == 0 && predicateSuffix == "" {
		return "SELECT ROW_TO_JSON(" + quoted + ") FROM " + quoted, nil
	}

	inner, err := BuildSelect(t, columns, predicateSuffix)
	if err != nil {
		return "", err
	}
	return "SELECT ROW_TO_JSON(" + quoted + ") FROM (" + inner + ") AS " + quoted, nil
}

// BuildInsert produces one INSERT statement for the given rows. The column
// list is derived from the first row's key set (sorted, since JSON objects
// carry no order), validated against the table. Every subsequent row must
// supply exactly the same key set; a divergent row is rejected outright
// rather than allowed to misalign the value tuples. String and Number
// values are inlined as SQL literals; any other kind fails with an
// insert-format error.
func BuildInsert(t schema.Table, rows []row.Document) (string, error) {
	if len(rows) == 0 {
		return "", errs.Newf(errs.KindInsertEmptyData,
			"insert into %q with no rows", t.Name())
	}

	cols := rows[0].Keys()
	if err := checkColumns(t, cols); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(QuoteIdent(t.Name()))
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(QuoteIdent(c))
	}
	sb.WriteString(") VALUES ")

	for i, doc := range rows {
		if !doc.SameKeys(rows[0]) {
			return "", errs.Newf(errs.KindInvalidInput,
				"insert into %q: row %d has keys [%s], want [%s]",
				t.Name(), i, strings.Join(doc.Keys(), ","), strings.Join(cols, ","))
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for j, c := range cols {
			if j > 0 {
				sb.WriteString(",")
			}
			lit, err := doc[c].SQLLiteral()
			if err != nil {
				return "", err
			}
			sb.WriteString(lit)
		}
		sb.WriteString(")")
	}
	return sb.String(), nil
}

// BuildDrop produces an unconditional DROP TABLE … CASCADE for the named
// table. CASCADE is deliberate: resets drop every live table and must not
// trip over foreign-key targets.
func BuildDrop(tableName string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(tableName) + " CASCADE"
}

// checkColumns validates requested column names against the table's
// declared columns, reporting the missing ones in input order.
func checkColumns(t schema.Table, columns []string) error {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return errs.Newf(errs.KindColumnsNotPresent,
			"columns not present in table %q: %s", t.Name(), strings.Join(missing, ", "))
	}
	return nil
}
