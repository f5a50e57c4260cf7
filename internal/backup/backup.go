// Package backup defines the snapshot document written around destructive
// schema resets, and the Store interface its persistence backends implement.
//
// The on-disk format is a single JSON document: a top-level array of
// {"name": <table>, "rows": [<flat object>, …]} entries whose order mirrors
// the declared schema, so a restore can replay parents before children.
package backup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/row"
)

// FormatVersion identifies the snapshot document layout. Bump it when the
// array format changes shape.
const FormatVersion = "1"

// TableSnapshot is the captured contents of one table.
type TableSnapshot struct {
	Name string         `json:"name"`
	Rows []row.Document `json:"rows"`
}

// Snapshot is the full ordered capture of all managed tables.
type Snapshot []TableSnapshot

// Table returns the named table's snapshot, if captured.
func (s Snapshot) Table(name string) (TableSnapshot, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return TableSnapshot{}, false
}

// Store persists and retrieves snapshots. Implementations overwrite any
// previous snapshot on Write. No locking is provided: callers must not run
// concurrent backup/restore against the same store.
type Store interface {
	// Write persists the snapshot, replacing any existing one.
	Write(ctx context.Context, snap Snapshot) error

	// Read retrieves the most recently written snapshot. Malformed or
	// missing data surfaces as a serialization error.
	Read(ctx context.Context) (Snapshot, error)
}

// ObjectMetadata returns the sidecar headers a store attaches to a written
// snapshot object: when it was written and which document layout it uses.
// The headers live in store metadata only; the JSON body stays the bare
// array so Decode never needs to know about them.
func ObjectMetadata(now time.Time) map[string]string {
	return map[string]string{
		"Written-At":     now.UTC().Format(time.RFC3339),
		"Format-Version": FormatVersion,
	}
}

// Encode renders a snapshot to its JSON document form.
func Encode(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "encode snapshot", err)
	}
	return data, nil
}

// Decode parses a JSON snapshot document. Number values keep their textual
// representation so a restore re-emits them byte-for-byte.
func Decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "decode snapshot", err)
	}
	return snap, nil
}
