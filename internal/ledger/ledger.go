// Package ledger records certificate lifecycle events in a small SQLite
// database kept alongside the key material. The ledger is strictly advisory:
// the filesystem stays the source of truth, and callers treat recording
// failures as warnings, never as operation failures.
package ledger

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Event is one recorded lifecycle action for a basename.
type Event struct {
	ID        int64     `db:"id"`
	Basename  string    `db:"basename"`
	Kind      string    `db:"kind"`
	Action    string    `db:"action"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// Kinds of recorded subjects.
const (
	KindCA   = "ca"
	KindCert = "cert"
)

// Actions recorded by the managers.
const (
	ActionConfigWritten = "config-written"
	ActionKeyGenerated  = "key-generated"
	ActionCSRCreated    = "csr-created"
	ActionCertSigned    = "cert-signed"
	ActionBundleWritten = "bundle-written"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		basename TEXT NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_basename ON events(basename)`,
}

// Ledger is an open event database.
type Ledger struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the ledger at path. Pass ":memory:" for
// an ephemeral ledger.
func Open(path string) (*Ledger, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Each :memory: connection is a separate database, so the pool must be
	// pinned to a single connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing ledger schema: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one event.
func (l *Ledger) Record(basename, kind, action, detail string) error {
	_, err := l.db.Exec(
		"INSERT INTO events (basename, kind, action, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		basename, kind, action, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording %s %s for %q: %w", kind, action, basename, err)
	}
	return nil
}

// Events returns every recorded event, oldest first.
func (l *Ledger) Events() ([]Event, error) {
	var events []Event
	if err := l.db.Select(&events, "SELECT * FROM events ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// EventsFor returns the events recorded for one basename, oldest first.
func (l *Ledger) EventsFor(basename string) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events, "SELECT * FROM events WHERE basename = ? ORDER BY id", basename)
	if err != nil {
		return nil, fmt.Errorf("listing events for %q: %w", basename, err)
	}
	return events, nil
}
