package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-db/tessera/internal/backup"
	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/logger"
	"github.com/tessera-db/tessera/internal/row"
	"github.com/tessera-db/tessera/internal/schema"
	"github.com/tessera-db/tessera/internal/sqlgen"
)

// --- in-memory fake store ---

type catColumn struct {
	name     string
	dataType string
	nullable bool
}

type catConstraint struct {
	kind      string
	column    *string
	refTable  *string
	refColumn *string
}

// fakeQuerier emulates just enough of the store for the reconciler: the
// catalog listing and per-table metadata queries, plus recognition of the
// statements sqlgen generates.
type fakeQuerier struct {
	mu sync.Mutex

	live map[string]bool
	cols map[string][]catColumn
	cons map[string][]catConstraint
	data map[string][]string // raw ROW_TO_JSON aggregates per table

	createByStmt map[string]schema.Table

	execLog   []string
	insertErr map[string]error
	pingErr   error
}

func newFakeQuerier(spec schema.Spec) *fakeQuerier {
	f := &fakeQuerier{
		live:         map[string]bool{},
		cols:         map[string][]catColumn{},
		cons:         map[string][]catConstraint{},
		data:         map[string][]string{},
		createByStmt: map[string]schema.Table{},
		insertErr:    map[string]error{},
	}
	for _, t := range spec.Tables() {
		f.createByStmt[sqlgen.BuildCreate(t)] = t
	}
	return f
}

// registerTable makes a table live with catalog metadata derived from its
// descriptor, the way the real catalog would report it: lowercased type
// names, primary keys reported as not nullable, and a CHECK row for every
// NOT NULL column.
func (f *fakeQuerier) registerTable(t schema.Table, jsonRows ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerLocked(t)
	f.data[t.Name()] = append([]string{}, jsonRows...)
}

func (f *fakeQuerier) registerLocked(t schema.Table) {
	name := t.Name()
	f.live[name] = true
	f.cols[name] = nil
	f.cons[name] = nil
	for _, c := range t.Columns() {
		f.cols[name] = append(f.cols[name], catColumn{
			name:     c.Name(),
			dataType: strings.ToLower(c.DataType()),
			nullable: !c.IsNotNull() && !c.IsPrimary(),
		})
		cname := c.Name()
		if c.IsPrimary() {
			f.cons[name] = append(f.cons[name], catConstraint{kind: "PRIMARY KEY", column: &cname})
		}
		if c.IsUnique() && !c.IsPrimary() {
			f.cons[name] = append(f.cons[name], catConstraint{kind: "UNIQUE", column: &cname})
		}
		if fk, ok := c.ForeignKey(); ok {
			rt, rc := fk.Table, fk.Column
			f.cons[name] = append(f.cons[name], catConstraint{
				kind: "FOREIGN KEY", column: &cname, refTable: &rt, refColumn: &rc,
			})
		}
		if c.IsNotNull() {
			f.cons[name] = append(f.cons[name], catConstraint{kind: "CHECK"})
		}
	}
}

func (f *fakeQuerier) Ping(context.Context) error { return f.pingErr }
func (f *fakeQuerier) Close()                     {}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS "):
		t, ok := f.createByStmt[sql]
		if !ok {
			return fmt.Errorf("fake: unexpected create statement %q", sql)
		}
		f.registerLocked(t)
		f.data[t.Name()] = nil

	case strings.HasPrefix(sql, `DROP TABLE IF EXISTS "`):
		name := strings.TrimSuffix(strings.TrimPrefix(sql, `DROP TABLE IF EXISTS "`), `" CASCADE`)
		delete(f.live, name)
		delete(f.cols, name)
		delete(f.cons, name)
		delete(f.data, name)

	case strings.HasPrefix(sql, `INSERT INTO "`):
		name := strings.SplitN(strings.TrimPrefix(sql, `INSERT INTO "`), `"`, 2)[0]
		if err := f.insertErr[name]; err != nil {
			return err
		}
		if !f.live[name] {
			return errs.Newf(errs.KindTableNotPresent, "table %q does not exist", name)
		}

	default:
		return fmt.Errorf("fake: unexpected statement %q", sql)
	}

	f.execLog = append(f.execLog, sql)
	return nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(sql, "information_schema.tables"):
		names := make([]string, 0, len(f.live))
		for name := range f.live {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]any, len(names))
		for i, name := range names {
			rows[i] = []any{name}
		}
		return &fakeRows{data: rows}, nil

	case strings.Contains(sql, "information_schema.columns"):
		table := args[0].(string)
		var rows [][]any
		for _, c := range f.cols[table] {
			rows = append(rows, []any{c.name, c.dataType, c.nullable})
		}
		return &fakeRows{data: rows}, nil

	case strings.Contains(sql, "table_constraints"):
		table := args[0].(string)
		var rows [][]any
		for _, c := range f.cons[table] {
			rows = append(rows, []any{c.kind, c.column, c.refTable, c.refColumn})
		}
		return &fakeRows{data: rows}, nil

	case strings.HasPrefix(sql, "SELECT ROW_TO_JSON("):
		name := strings.SplitN(strings.TrimPrefix(sql, `SELECT ROW_TO_JSON("`), `"`, 2)[0]
		if !f.live[name] {
			return nil, errs.Newf(errs.KindTableNotPresent, "table %q does not exist", name)
		}
		var rows [][]any
		for _, raw := range f.data[name] {
			rows = append(rows, []any{raw})
		}
		return &fakeRows{data: rows}, nil
	}

	return nil, fmt.Errorf("fake: unexpected query %q", sql)
}

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Next() bool { r.i++; return r.i <= len(r.data) }
func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	cur := r.data[r.i-1]
	for j, d := range dest {
		switch dst := d.(type) {
		case *string:
			*dst = cur[j].(string)
		case *bool:
			*dst = cur[j].(bool)
		case *[]byte:
			*dst = []byte(cur[j].(string))
		case **string:
			if cur[j] == nil {
				*dst = nil
			} else {
				*dst = cur[j].(*string)
			}
		default:
			return fmt.Errorf("fake: unsupported scan dest %T", d)
		}
	}
	return nil
}

// memStore is an in-memory backup.Store.
type memStore struct {
	snap    backup.Snapshot
	written int
	readErr error
}

func (m *memStore) Write(_ context.Context, snap backup.Snapshot) error {
	m.snap = snap
	m.written++
	return nil
}

func (m *memStore) Read(context.Context) (backup.Snapshot, error) {
	return m.snap, m.readErr
}

// --- fixtures ---

func usersTable() schema.Table {
	return schema.MustTable("users",
		schema.NewColumn("id", "INTEGER", schema.PrimaryKey()),
		schema.NewColumn("name", "TEXT", schema.NotNull()),
	)
}

func postsTable() schema.Table {
	return schema.MustTable("posts",
		schema.NewColumn("id", "INTEGER", schema.PrimaryKey()),
		schema.NewColumn("author", "INTEGER", schema.References("users", "id")),
	)
}

func testSpec() schema.Spec {
	return schema.MustSpec(usersTable(), postsTable())
}

// --- tests ---

func TestOpen_EmptyStoreInitializes(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec, WithLogger(logger.Nop()))
	require.NoError(t, err)

	assert.Equal(t, StateReady, db.State())
	assert.Equal(t, []string{
		sqlgen.BuildCreate(usersTable()),
		sqlgen.BuildCreate(postsTable()),
	}, fake.execLog, "tables must be created in spec order")

	empty, err := db.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestOpen_TrustsExistingWithoutMutation(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)
	fake.registerTable(usersTable())

	db, err := Open(context.Background(), fake, spec)
	require.NoError(t, err)

	assert.Equal(t, StateReady, db.State())
	assert.Empty(t, fake.execLog, "trusting an existing schema must not mutate it")
}

func TestOpen_VerifyCleanSchema(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)
	fake.registerTable(usersTable())
	fake.registerTable(postsTable())

	_, err := Open(context.Background(), fake, spec, WithMode(ModeVerify))
	require.NoError(t, err)
}

func TestOpen_VerifyDetectsDrift(t *testing.T) {
	spec := testSpec()

	t.Run("drifted column type", func(t *testing.T) {
		fake := newFakeQuerier(spec)
		fake.registerTable(schema.MustTable("users",
			schema.NewColumn("id", "TEXT", schema.PrimaryKey()),
			schema.NewColumn("name", "TEXT", schema.NotNull()),
		))
		fake.registerTable(postsTable())

		_, err := Open(context.Background(), fake, spec, WithMode(ModeVerify))
		require.Error(t, err)
		assert.True(t, errs.IsDriftDetected(err))
		assert.Contains(t, err.Error(), "users")
		assert.NotContains(t, err.Error(), "posts")
	})

	t.Run("declared table missing", func(t *testing.T) {
		fake := newFakeQuerier(spec)
		fake.registerTable(usersTable())

		_, err := Open(context.Background(), fake, spec, WithMode(ModeVerify))
		require.Error(t, err)
		assert.True(t, errs.IsDriftDetected(err))
		assert.Contains(t, err.Error(), "posts")
	})
}

func TestDescribe_RoundTripsDeclaredTable(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)

	for _, want := range spec.Tables() {
		got, err := db.Describe(ctx, want.Name())
		require.NoError(t, err)
		assert.True(t, want.Equivalent(got),
			"describe(%s) must round-trip under relaxed equality", want.Name())
	}
}

func TestDescribe_TableNotPresent(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(context.Background(), fake, spec)
	require.NoError(t, err)

	_, err = db.Describe(context.Background(), "ghosts")
	require.Error(t, err)
	assert.True(t, errs.IsTableNotPresent(err))
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)

	fake.registerTable(usersTable(),
		`{"id":1,"name":"alice"}`,
		`{"id":2,"name":"bob"}`,
	)

	docs, err := db.Select(ctx, "users", nil, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0].Equal(row.Document{"id": row.Int(1), "name": row.String("alice")}))
	assert.True(t, docs[1].Equal(row.Document{"id": row.Int(2), "name": row.String("bob")}))
}

func TestSelect_UndeclaredTable(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(context.Background(), fake, spec)
	require.NoError(t, err)

	_, err = db.Select(context.Background(), "ghosts", nil, "")
	require.Error(t, err)
	assert.True(t, errs.IsTableNotPresent(err))
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)

	docs := []row.Document{{"id": row.Int(1), "name": row.String("alice")}}
	require.NoError(t, db.Insert(ctx, "users", docs))

	want, err := sqlgen.BuildInsert(usersTable(), docs)
	require.NoError(t, err)
	assert.Contains(t, fake.execLog, want)
}

func TestInsert_Failures(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)
	created := len(fake.execLog)

	t.Run("undeclared table", func(t *testing.T) {
		err := db.Insert(ctx, "ghosts", []row.Document{{"id": row.Int(1)}})
		assert.True(t, errs.IsTableNotPresent(err))
	})

	t.Run("empty rows", func(t *testing.T) {
		err := db.Insert(ctx, "users", nil)
		assert.True(t, errs.IsInsertEmptyData(err))
	})

	t.Run("unsupported value kind", func(t *testing.T) {
		err := db.Insert(ctx, "users", []row.Document{{"name": row.FromAny(true)}})
		assert.True(t, errs.IsInsertFormat(err))
	})

	assert.Len(t, fake.execLog, created, "failed inserts must not reach the store")
}

func TestReset_WithoutBackupLeavesTablesEmpty(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)

	fake.registerTable(usersTable(), `{"id":1,"name":"alice"}`)
	// A stray table outside the spec must be dropped too.
	fake.registerTable(schema.MustTable("legacy", schema.NewColumn("id", "INTEGER")),
		`{"id":9}`)

	require.NoError(t, db.Reset(ctx, false))

	assert.Contains(t, fake.execLog, sqlgen.BuildDrop("legacy"))
	assert.Contains(t, fake.execLog, sqlgen.BuildDrop("users"))
	assert.Contains(t, fake.execLog, sqlgen.BuildDrop("posts"))
	assert.False(t, fake.live["legacy"])

	docs, err := db.Select(ctx, "users", nil, "")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, StateReady, db.State())
}

func TestReset_WithBackupRestoresRows(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)
	store := &memStore{}

	db, err := Open(ctx, fake, spec, WithBackupStore(store), WithLogger(logger.Nop()))
	require.NoError(t, err)

	fake.registerTable(usersTable(),
		`{"id":1,"name":"alice"}`,
		`{"id":2,"name":"bob"}`,
	)
	fake.registerTable(postsTable(), `{"id":10,"author":1}`)

	require.NoError(t, db.Reset(ctx, true))

	require.Equal(t, 1, store.written)
	require.Len(t, store.snap, 2)
	assert.Equal(t, "users", store.snap[0].Name, "snapshot order mirrors the spec")
	assert.Equal(t, "posts", store.snap[1].Name)
	require.Len(t, store.snap[0].Rows, 2)

	wantUsers, err := sqlgen.BuildInsert(usersTable(), store.snap[0].Rows)
	require.NoError(t, err)
	wantPosts, err := sqlgen.BuildInsert(postsTable(), store.snap[1].Rows)
	require.NoError(t, err)
	assert.Contains(t, fake.execLog, wantUsers)
	assert.Contains(t, fake.execLog, wantPosts)
}

func TestReset_SnapshotOfStrayTableIsSkippedOnRestore(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)
	store := &memStore{}

	db, err := Open(ctx, fake, spec, WithBackupStore(store), WithLogger(logger.Nop()))
	require.NoError(t, err)

	fake.registerTable(usersTable(), `{"id":1,"name":"alice"}`)
	fake.registerTable(schema.MustTable("legacy", schema.NewColumn("id", "INTEGER")),
		`{"id":9}`)

	require.NoError(t, db.Reset(ctx, true))

	// The stray table is captured in the snapshot but skipped on restore.
	_, captured := store.snap.Table("legacy")
	assert.True(t, captured)
	for _, stmt := range fake.execLog {
		assert.False(t, strings.HasPrefix(stmt, `INSERT INTO "legacy"`),
			"stray table must not be restored")
	}

	wantUsers, err := sqlgen.BuildInsert(usersTable(), []row.Document{
		{"id": row.Int(1), "name": row.String("alice")},
	})
	require.NoError(t, err)
	assert.Contains(t, fake.execLog, wantUsers, "remaining tables must still restore")
}

func TestReset_RestoreFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)
	store := &memStore{}

	db, err := Open(ctx, fake, spec, WithBackupStore(store), WithLogger(logger.Nop()))
	require.NoError(t, err)

	fake.registerTable(usersTable(), `{"id":1,"name":"alice"}`)
	fake.registerTable(postsTable(), `{"id":10,"author":1}`)
	fake.insertErr["users"] = errors.New("disk on fire")

	require.NoError(t, db.Reset(ctx, true), "a per-table restore failure is swallowed")

	wantPosts, err := sqlgen.BuildInsert(postsTable(), []row.Document{
		{"id": row.Int(10), "author": row.Int(1)},
	})
	require.NoError(t, err)
	assert.Contains(t, fake.execLog, wantPosts)
}

func TestReset_WithBackupRequiresStore(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(context.Background(), fake, spec)
	require.NoError(t, err)

	err = db.Reset(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestIsEmpty(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	fake := newFakeQuerier(spec)
	fake.registerTable(usersTable())

	db, err := Open(ctx, fake, spec)
	require.NoError(t, err)

	empty, err := db.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	require.NoError(t, fake.Exec(ctx, sqlgen.BuildDrop("users")))
	empty, err = db.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestHealth(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)

	db, err := Open(context.Background(), fake, spec)
	require.NoError(t, err)

	assert.True(t, db.Health(context.Background()))
	fake.pingErr = errors.New("gone")
	assert.False(t, db.Health(context.Background()))
}

func TestOpen_PingFailurePropagates(t *testing.T) {
	spec := testSpec()
	fake := newFakeQuerier(spec)
	fake.pingErr = errs.New(errs.KindConnectionFailed, "refused")

	_, err := Open(context.Background(), fake, spec)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
