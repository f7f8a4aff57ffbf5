package blob

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store as a single-file key-value table, useful when
// the audit artifacts should travel as one portable file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the store database at dsn and configures WAL
// mode the same way the rest of our sqlite usage does.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite store: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS blobs (
	path       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite store: migrate")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, path string) (bool, error) {
	key, err := cleanKey(path)
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE path = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite store: exists %s", path)
	}
	return true, nil
}

func (s *SQLiteStore) get(ctx context.Context, path string) ([]byte, error) {
	key, err := cleanKey(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE path = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite store: %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite store: get %s", path)
	}
	return data, nil
}

func (s *SQLiteStore) put(ctx context.Context, path string, data []byte) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data)
	if err != nil {
		return eris.Wrapf(err, "sqlite store: put %s", path)
	}
	return nil
}

func (s *SQLiteStore) ReadJSON(ctx context.Context, path string, v any) error {
	data, err := s.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "sqlite store: decode %s", path)
	}
	return nil
}

func (s *SQLiteStore) WriteJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "sqlite store: encode %s", path)
	}
	return s.put(ctx, path, data)
}

func (s *SQLiteStore) Download(ctx context.Context, path, localDest string) error {
	data, err := s.get(ctx, path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localDest, data, 0o644); err != nil {
		return eris.Wrapf(err, "sqlite store: write local %s", localDest)
	}
	return nil
}

func (s *SQLiteStore) Upload(ctx context.Context, localSrc, path string) error {
	data, err := os.ReadFile(localSrc)
	if err != nil {
		return eris.Wrapf(err, "sqlite store: read local %s", localSrc)
	}
	return s.put(ctx, path, data)
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	key, err := cleanKey(prefix)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM blobs WHERE path LIKE ? || '%' ORDER BY path`, key)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite store: list %s", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite store: scan")
		}
		keys = append(keys, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite store: list %s", prefix)
	}
	return keys, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
