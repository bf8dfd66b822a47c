package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the snapshot in a SQLite database. Each commit is one transaction.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at path and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", ErrPersistence, err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrPersistence, err)
	}
	// one connection keeps the transaction and the count check on the same view
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %w", ErrPersistence, err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", ErrPersistence, err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		slot INTEGER PRIMARY KEY,
		product_id TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		batch_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_batch_id ON entries(batch_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Load reads all entries ordered by slot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	dims, err := s.metaValue(ctx, "dimensions")
	if err != nil {
		return nil, err
	}
	if dims != "" {
		if snap.Dimensions, err = strconv.Atoi(dims); err != nil {
			return nil, fmt.Errorf("%w: bad dimensions %q", ErrPersistence, dims)
		}
	}
	if snap.BatchID, err = s.metaValue(ctx, "batch_id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT slot, product_id, text, vector FROM entries ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("%w: query entries: %w", ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			slot int
			e    Entry
			blob []byte
		)
		if err := rows.Scan(&slot, &e.ID, &e.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", ErrPersistence, err)
		}
		if slot != len(snap.Entries) {
			return nil, fmt.Errorf("%w: missing slot %d", ErrPersistence, len(snap.Entries))
		}
		if e.Vector, err = decodeVector(blob, snap.Dimensions); err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read entries: %w", ErrPersistence, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) metaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read meta %s: %w", ErrPersistence, key, err)
	}
	return v, nil
}

// Commit inserts snap.Entries[from:] in one transaction. If the table does not hold exactly
// `from` rows it is rewritten from the whole snapshot.
func (s *SQLiteStore) Commit(ctx context.Context, snap *Snapshot, from int) (err error) {
	if err := snap.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("%w: commit: %w", ErrPersistence, err)
		}
	}()

	var count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return err
	}
	if count != from || from > len(snap.Entries) {
		if _, err = tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return err
		}
		from = 0
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (slot, product_id, text, vector, batch_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := from; i < len(snap.Entries); i++ {
		e := snap.Entries[i]
		if _, err = stmt.ExecContext(ctx, i, e.ID, e.Text, encodeVector(e.Vector), snap.BatchID); err != nil {
			return err
		}
	}

	for k, v := range map[string]string{
		"dimensions": strconv.Itoa(snap.Dimensions),
		"count":      strconv.Itoa(len(snap.Entries)),
		"batch_id":   snap.BatchID,
	} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Type() string { return BackendSQLite }

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
