package session

import (
	"context"
	"database/sql"
	"sync"

	"student-portal/db"
)

// Store is the key/value persistence behind the login session.
// Get returns "" for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]string)
	return nil
}

// SQLStore persists the session in the kv_store table.
type SQLStore struct {
	conn   *sql.DB
	driver string
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{conn: conn, driver: db.DriverOf(conn)}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, db.Rebind(s.driver, `SELECT value FROM kv_store WHERE key = $1`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, db.Rebind(s.driver,
		`INSERT INTO kv_store (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, value)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, db.Rebind(s.driver, `DELETE FROM kv_store WHERE key = $1`), k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM kv_store`)
	return err
}
