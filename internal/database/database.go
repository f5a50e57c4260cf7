// Package database orchestrates the live relational store: it owns the
// connect-time decision between initializing an empty database and trusting
// (or verifying) existing structure, drives statement generation and
// execution for the read/write surface, and sequences the destructive
// reset around an optional snapshot.
package database

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tessera-db/tessera/internal/backup"
	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/logger"
	"github.com/tessera-db/tessera/internal/row"
	"github.com/tessera-db/tessera/internal/schema"
	"github.com/tessera-db/tessera/internal/sqlgen"
)

// Database is the operation surface consumed by external callers. A single
// instance is safe for concurrent reads and writes; the reset sequence is a
// critical section and is serialized internally.
type Database struct {
	q     Querier
	spec  schema.Spec
	intro *Introspector
	store backup.Store
	log   *logger.Logger
	mode  Mode

	state atomic.Int32

	// resetMu serializes the drop-all → recreate → restore sequence.
	// Concurrent callers may still observe a transiently table-less
	// database while a reset is in flight.
	resetMu sync.Mutex
}

// Option configures a Database during Open.
type Option func(*Database)

// WithMode selects trust-vs-verify behavior for an existing schema.
func WithMode(m Mode) Option {
	return func(d *Database) { d.mode = m }
}

// WithBackupStore sets the snapshot store used by Reset(withBackup=true).
func WithBackupStore(s backup.Store) Option {
	return func(d *Database) { d.store = s }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Database) { d.log = l }
}

// Open wires a Database over q and performs the connect-time
// reconciliation: if the store holds no tables, every declared table is
// created in spec order; otherwise the existing structure is trusted, or
// verified against the spec when ModeVerify is selected.
//
// spec must already order tables parents-before-children; Open does not
// topologically sort.
func Open(ctx context.Context, q Querier, spec schema.Spec, opts ...Option) (*Database, error) {
	d := &Database{
		q:     q,
		spec:  spec,
		intro: NewIntrospector(q),
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.state.Store(int32(StateConnecting))
	if err := d.reconcile(ctx); err != nil {
		d.state.Store(int32(StateDisconnected))
		return nil, err
	}
	d.state.Store(int32(StateReady))
	return d, nil
}

// reconcile decides between initializing an empty store and trusting or
// verifying existing structure.
func (d *Database) reconcile(ctx context.Context) error {
	if err := d.q.Ping(ctx); err != nil {
		return err
	}

	live, err := d.intro.ListTables(ctx)
	if err != nil {
		return err
	}

	if len(live) == 0 {
		if err := d.createAll(ctx); err != nil {
			return err
		}
		d.state.Store(int32(StateEmptyInitialized))
		d.log.Infof("initialized empty database with %d tables", d.spec.Len())
		return nil
	}

	d.state.Store(int32(StateTrustedExisting))
	if d.mode == ModeVerify {
		if err := d.verifyDrift(ctx); err != nil {
			return err
		}
		d.log.Infof("verified %d tables against the live catalog", d.spec.Len())
	} else {
		d.log.Infof("trusting existing schema (%d live tables)", len(live))
	}
	return nil
}

// createAll creates every declared table in spec order, so foreign-key
// parents exist before their children.
func (d *Database) createAll(ctx context.Context) error {
	for _, t := range d.spec.Tables() {
		if err := d.q.Exec(ctx, sqlgen.BuildCreate(t)); err != nil {
			return err
		}
	}
	return nil
}

// verifyDrift compares every declared table against its live counterpart
// under the relaxed descriptor equality, reporting all drifting tables at
// once rather than stopping at the first.
func (d *Database) verifyDrift(ctx context.Context) error {
	var drifted []string
	for _, want := range d.spec.Tables() {
		got, err := d.intro.Describe(ctx, want.Name())
		if err != nil {
			if errs.IsTableNotPresent(err) {
				drifted = append(drifted, want.Name())
				continue
			}
			return err
		}
		if !want.Equivalent(got) {
			drifted = append(drifted, want.Name())
		}
	}
	if len(drifted) > 0 {
		return errs.Newf(errs.KindDriftDetected,
			"live schema drifts from the declared spec in tables: %s",
			strings.Join(drifted, ", "))
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Database) State() State {
	return State(d.state.Load())
}

// Spec returns the immutable declared schema.
func (d *Database) Spec() schema.Spec {
	return d.spec
}

// Describe reconstructs the named table's descriptor from the live catalog.
func (d *Database) Describe(ctx context.Context, table string) (schema.Table, error) {
	return d.intro.Describe(ctx, table)
}

// Select reads rows from a declared table. columns restricts the result
// (empty means all); predicate is raw trailing SQL such as
// `WHERE "id" = $1`, with params bound natively. Each result row arrives as
// a RowDocument decoded from the store's JSON aggregate.
func (d *Database) Select(ctx context.Context, table string, columns []string, predicate string, params ...any) ([]row.Document, error) {
	t, ok := d.spec.Table(table)
	if !ok {
		return nil, errs.Newf(errs.KindTableNotPresent, "table %q is not declared", table)
	}

	sql, err := sqlgen.BuildSelectAsJSON(t, columns, predicate)
	if err != nil {
		return nil, err
	}
	return d.queryDocs(ctx, sql, params...)
}

// Insert writes rows into a declared table. All rows must share the first
// row's key set, and every value must be a String or Number; anything else
// fails before any statement reaches the store.
func (d *Database) Insert(ctx context.Context, table string, rows []row.Document) error {
	t, ok := d.spec.Table(table)
	if !ok {
		return errs.Newf(errs.KindTableNotPresent, "table %q is not declared", table)
	}

	sql, err := sqlgen.BuildInsert(t, rows)
	if err != nil {
		return err
	}
	return d.q.Exec(ctx, sql)
}

// Reset drops every currently live table (with CASCADE, so nothing orphans
// a foreign-key target), recreates the declared schema in spec order, and,
// when withBackup is set, snapshots beforehand and restores afterwards.
// Restore is best-effort per table: a snapshot table absent from the fresh
// schema is skipped with a warning, and one table failing does not stop
// the rest. Resets are serialized against each other.
func (d *Database) Reset(ctx context.Context, withBackup bool) error {
	d.resetMu.Lock()
	defer d.resetMu.Unlock()

	d.state.Store(int32(StateResetting))
	defer d.state.Store(int32(StateReady))

	var snap backup.Snapshot
	if withBackup {
		if d.store == nil {
			return errs.New(errs.KindInvalidInput, "reset with backup requires a backup store")
		}
		var err error
		snap, err = d.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := d.store.Write(ctx, snap); err != nil {
			return err
		}
		d.log.Infof("backed up %d tables before reset", len(snap))
	}

	live, err := d.intro.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, name := range live {
		if err := d.q.Exec(ctx, sqlgen.BuildDrop(name)); err != nil {
			return err
		}
	}

	if err := d.createAll(ctx); err != nil {
		return err
	}

	if withBackup {
		d.restore(ctx, snap)
	}
	return nil
}

// Snapshot captures the current rows of every live table: declared tables
// first, in spec order so a restore replays parents before children, then
// any live table outside the spec (introspected for its descriptor). A
// stray table's rows survive into the snapshot even though a later restore
// into a freshly declared-only schema will skip them.
func (d *Database) Snapshot(ctx context.Context) (backup.Snapshot, error) {
	live, err := d.intro.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	snap := make(backup.Snapshot, 0, len(live))
	for _, t := range d.spec.Tables() {
		if !liveSet[t.Name()] {
			continue
		}
		docs, err := d.selectAll(ctx, t)
		if err != nil {
			return nil, err
		}
		snap = append(snap, backup.TableSnapshot{Name: t.Name(), Rows: docs})
	}

	for _, name := range live {
		if d.spec.HasTable(name) {
			continue
		}
		t, err := d.intro.Describe(ctx, name)
		if err != nil {
			return nil, err
		}
		docs, err := d.selectAll(ctx, t)
		if err != nil {
			return nil, err
		}
		snap = append(snap, backup.TableSnapshot{Name: name, Rows: docs})
	}
	return snap, nil
}

// selectAll reads every row of t as JSON aggregate documents.
func (d *Database) selectAll(ctx context.Context, t schema.Table) ([]row.Document, error) {
	sql, err := sqlgen.BuildSelectAsJSON(t, nil, "")
	if err != nil {
		return nil, err
	}
	return d.queryDocs(ctx, sql)
}

// queryDocs runs a ROW_TO_JSON select and decodes each result row.
func (d *Database) queryDocs(ctx context.Context, sql string, params ...any) ([]row.Document, error) {
	rows, err := d.q.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]row.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.Wrap(errs.KindQueryFailed, "scan json aggregate", err)
		}
		doc, err := row.DecodeAggregate(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryFailed, "iterate result rows", err)
	}
	return docs, nil
}

// restore replays a snapshot into the freshly recreated schema. Failures
// here are the one locally-recovered case in the whole error policy: each
// table is attempted independently, and problems are logged and skipped.
func (d *Database) restore(ctx context.Context, snap backup.Snapshot) {
	for _, t := range snap {
		if !d.spec.HasTable(t.Name) {
			d.log.Warnf("restore: skipping table %q, not part of the current schema", t.Name)
			continue
		}
		if len(t.Rows) == 0 {
			continue
		}
		if err := d.Insert(ctx, t.Name, t.Rows); err != nil {
			d.log.ErrorErr("restore: table "+t.Name+" failed", err)
			continue
		}
		d.log.Infof("restore: table %q restored with %d rows", t.Name, len(t.Rows))
	}
}

// IsEmpty reports whether the store currently holds no tables at all.
func (d *Database) IsEmpty(ctx context.Context) (bool, error) {
	live, err := d.intro.ListTables(ctx)
	if err != nil {
		return false, err
	}
	return len(live) == 0, nil
}

// Health reports whether the store is reachable.
func (d *Database) Health(ctx context.Context) bool {
	return d.q.Ping(ctx) == nil
}

// Close releases the underlying pool.
func (d *Database) Close() {
	d.q.Close()
	d.state.Store(int32(StateDisconnected))
}
