package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions    = 0o750
	filePermissions   = 0o600
	busyTimeoutMillis = 5000
	pingTimeout       = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS config_entries (
	entry_id   TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	title      TEXT NOT NULL,
	unique_id  TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	options    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_config_entries_domain ON config_entries(domain);
`

// SQLiteStore persists entries in a single SQLite table. Load state is
// runtime-only and is not stored.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the entry database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("create entries dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open entries db: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping entries db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate entries db: %w", err)
	}
	if path != ":memory:" {
		_ = os.Chmod(path, filePermissions)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, domain, title, unique_id, version, data, options, created_at, updated_at
		FROM config_entries`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			data, options        string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.EntryID, &e.Domain, &e.Title, &e.UniqueID, &e.Version, &data, &options, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("decode data of %s: %w", e.EntryID, err)
		}
		if err := json.Unmarshal([]byte(options), &e.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", e.EntryID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", e.EntryID, err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at of %s: %w", e.EntryID, err)
		}
		e.State = StateNotLoaded
		out = append(out, e.Clone())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	sortEntries(out)
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	entry = entry.Clone()
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	options, err := json.Marshal(entry.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_entries (entry_id, domain, title, unique_id, version, data, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			domain = excluded.domain,
			title = excluded.title,
			unique_id = excluded.unique_id,
			version = excluded.version,
			data = excluded.data,
			options = excluded.options,
			updated_at = excluded.updated_at`,
		entry.EntryID, entry.Domain, entry.Title, entry.UniqueID, entry.Version,
		string(data), string(options),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano), entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put entry %s: %w", entry.EntryID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config_entries WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("delete entry %s: %w", entryID, err)
	}
	return nil
}
