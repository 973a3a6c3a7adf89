package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Dialect selects the SQL flavour used for queries.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

const DefaultTableName = "calc_sessions"

// SQLBackend stores session records in a table:
//
//	CREATE TABLE calc_sessions (
//	    id         INTEGER PRIMARY KEY,
//	    data       BYTEA NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
//
// The same schema is created with BLOB for SQLite.
type SQLBackend struct {
	db      *sql.DB
	table   string
	dialect Dialect

	mu     sync.RWMutex
	closed bool
}

type SQLOption func(*SQLBackend)

func WithTableName(name string) SQLOption {
	return func(b *SQLBackend) { b.table = name }
}

// NewSQLBackend wraps db. The caller keeps ownership of db; Close does not
// close it.
func NewSQLBackend(db *sql.DB, dialect Dialect, opts ...SQLOption) *SQLBackend {
	b := &SQLBackend{db: db, table: DefaultTableName, dialect: dialect}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureSchema creates the sessions table when it does not exist.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	blob := "BYTEA"
	if b.dialect == DialectSQLite {
		blob = "BLOB"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         INTEGER PRIMARY KEY,
			data       %s NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, b.table, blob)
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

func (b *SQLBackend) placeholder(n int) string {
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (b *SQLBackend) Save(ctx context.Context, id int, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	var query string
	switch b.dialect {
	case DialectPostgres:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, data, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = NOW()`, b.table)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (id, data, updated_at)
			VALUES (?, ?, datetime('now'))`, b.table)
	}

	_, err := b.db.ExecContext(ctx, query, id, data)
	return err
}

func (b *SQLBackend) Load(ctx context.Context, id int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = %s`, b.table, b.placeholder(1))
	var data []byte
	if err := b.db.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *SQLBackend) Delete(ctx context.Context, id int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, b.table, b.placeholder(1))
	_, err := b.db.ExecContext(ctx, query, id)
	return err
}

func (b *SQLBackend) List(ctx context.Context) ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s`, b.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *SQLBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
