// Package sqlite persists the bot's durable state: the set of already
// reported topic ids and a log of published reports. The database is a
// single local file; nothing else in the system writes it.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// InMemory opens a private in-memory database, used by tests.
const InMemory = ":memory:"

// Per-connection pragmas carried in the DSN so every pooled connection gets
// them, not just the first.
const filePragmas = "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS seen_topics (
		id            TEXT PRIMARY KEY,
		first_seen_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id     TEXT NOT NULL UNIQUE,
		body         TEXT NOT NULL,
		topic_count  INTEGER NOT NULL,
		acked        INTEGER NOT NULL,
		published_at TIMESTAMP NOT NULL
	)`,
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open opens the state database at path, creating the file and schema when
// absent. The caller owns closing the returned handle.
func Open(path string) (*sqlx.DB, error) {
	dsn := path + filePragmas
	if path == InMemory {
		dsn = path
	} else if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if path == InMemory {
		// Every new connection to :memory: is a separate empty database.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}
