// Package sqlite is a single-file records store on SQLite. Each document is
// a JSON body in one shared table; secondary lookups use json_extract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/repository/records"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sequences (
		collection TEXT PRIMARY KEY,
		last_id    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT    NOT NULL,
		id         INTEGER NOT NULL,
		body       TEXT    NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_cycle_id
		ON documents (collection, json_extract(body, '$.cycle_id'))`,
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements records.Store, records.SnapshotReader and records.Decrementer.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s?_txlock=immediate&_timeout=5000", path)
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA synchronous=NORMAL"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add draws the next id from the collection sequence and inserts doc.
func (s *Store) Add(ctx context.Context, collection string, doc records.Document) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add to %s: begin: %w", collection, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sequences (collection, last_id) VALUES (?, 1)
		ON CONFLICT (collection) DO UPDATE SET last_id = last_id + 1
		RETURNING last_id`, collection).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add to %s: next id: %w", collection, err)
	}

	doc.SetID(id)
	body, err := records.EncodeJSON(doc)
	if err != nil {
		doc.SetID(0)
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
		collection, id, string(body)); err != nil {
		doc.SetID(0)
		return 0, fmt.Errorf("add to %s: insert: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		doc.SetID(0)
		return 0, fmt.Errorf("add to %s: commit: %w", collection, err)
	}
	return id, nil
}

// Update overwrites the body of an existing document.
func (s *Store) Update(ctx context.Context, collection string, doc records.Document) error {
	body, err := records.EncodeJSON(doc)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`,
		string(body), collection, doc.GetID())
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", collection, doc.GetID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", collection, doc.GetID(), err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%d: %w", collection, doc.GetID(), records.ErrNotFound)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, id int64, out any) error {
	return get(ctx, s.db, collection, id, out)
}

func (s *Store) GetAll(ctx context.Context, collection string, out any) error {
	return getAll(ctx, s.db, collection, out)
}

func (s *Store) GetAllByIndex(ctx context.Context, collection, field string, value any, out any) error {
	return getAllByIndex(ctx, s.db, collection, field, value, out)
}

// ReadSnapshot runs fn inside one read transaction.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r records.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, txReader{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// DecrementIfAtLeast subtracts amount from a numeric field in one
// conditional UPDATE.
func (s *Store) DecrementIfAtLeast(ctx context.Context, collection string, id int64, field string, amount float64) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("decrement %s/%d: invalid field name %q", collection, id, field)
	}
	path := "$." + field

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET body = json_set(body, ?, json_extract(body, ?) - ?)
		WHERE collection = ? AND id = ? AND json_extract(body, ?) >= ?`,
		path, path, amount, collection, id, path, amount)
	if err != nil {
		return fmt.Errorf("decrement %s/%d: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement %s/%d: %w", collection, id, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("decrement %s/%d: %w", collection, id, records.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("decrement %s/%d: %w", collection, id, err)
	}
	return fmt.Errorf("decrement %s/%d: %w", collection, id, records.ErrInsufficient)
}

type txReader struct {
	tx *sql.Tx
}

func (r txReader) Get(ctx context.Context, collection string, id int64, out any) error {
	return get(ctx, r.tx, collection, id, out)
}

func (r txReader) GetAll(ctx context.Context, collection string, out any) error {
	return getAll(ctx, r.tx, collection, out)
}

func (r txReader) GetAllByIndex(ctx context.Context, collection, field string, value any, out any) error {
	return getAllByIndex(ctx, r.tx, collection, field, value, out)
}

func get(ctx context.Context, q querier, collection string, id int64, out any) error {
	var body string
	err := q.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get %s/%d: %w", collection, id, records.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%d: %w", collection, id, err)
	}
	return records.DecodeJSON(collection, []byte(body), id, out)
}

func getAll(ctx context.Context, q querier, collection string, out any) error {
	rows, err := q.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return fmt.Errorf("get all %s: %w", collection, err)
	}
	return decodeRows(rows, collection, out)
}

func getAllByIndex(ctx context.Context, q querier, collection, field string, value any, out any) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("get %s by %q: invalid field name", collection, field)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, body FROM documents
		WHERE collection = ? AND json_extract(body, ?) = ?
		ORDER BY id`, collection, "$."+field, value)
	if err != nil {
		return fmt.Errorf("get %s by %s: %w", collection, field, err)
	}
	return decodeRows(rows, collection, out)
}

func decodeRows(rows *sql.Rows, collection string, out any) error {
	defer rows.Close()

	var result []records.Row
	for rows.Next() {
		var (
			id   int64
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		result = append(result, records.Row{ID: id, Body: []byte(body)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", collection, err)
	}
	return records.DecodeAll(collection, result, out)
}
