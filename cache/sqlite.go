package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// queryTimeout bounds every persistence I/O operation so a slow disk can
// never stall a save or load indefinitely.
const queryTimeout = 5 * time.Second

// SQLitePersistence is a PersistenceStore backed by a SQLite database using
// modernc.org/sqlite (pure Go, no CGO). Snapshots survive process restarts
// without external infrastructure.
type SQLitePersistence struct {
	db *sql.DB
}

var _ PersistenceStore = (*SQLitePersistence)(nil)

// NewSQLitePersistence opens (creating if needed) the database at dbPath.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLitePersistence(dbPath string) (*SQLitePersistence, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite persistence")
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}

	return &SQLitePersistence{db: db}, nil
}

func (p *SQLitePersistence) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var value []byte
	err := p.db.QueryRowContext(qctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

func (p *SQLitePersistence) SetItem(ctx context.Context, key string, value []byte) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := p.db.ExecContext(qctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano(),
	)
	return errors.Wrapf(err, "writing %q", key)
}

// Close closes the underlying database.
func (p *SQLitePersistence) Close() error {
	return p.db.Close()
}
