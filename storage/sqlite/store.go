// Package sqlite implements the document store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
	"github.com/poiesic/postflow/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed storage.DocumentStore.
type Store struct {
	sqlDB *sql.DB

	mu     sync.RWMutex
	closed bool
}

var _ storage.DocumentStore = (*Store)(nil)

// Open opens a SQLite document store at path and applies migrations.
func Open(path string) (*Store, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("document store path is required")
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sqlDB.Close()
}

func (s *Store) ready(cred security.Credential) error {
	if err := cred.Check(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	return nil
}

// Insert stores document in collection under a fresh UUID.
func (s *Store) Insert(ctx context.Context, cred security.Credential, collection string, document []byte, vis core.Visibility) (string, error) {
	if err := s.ready(cred); err != nil {
		return "", err
	}
	if err := vis.Validate(); err != nil {
		return "", err
	}
	visData, err := storage.MarshalVisibility(vis)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body, visibility, inserted_at) VALUES (?, ?, ?, ?, ?)`,
		id,
		collection,
		document,
		string(visData),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// Get retrieves a document by collection and id.
func (s *Store) Get(ctx context.Context, cred security.Credential, collection, id string) (*storage.Document, error) {
	if err := s.ready(cred); err != nil {
		return nil, err
	}

	var (
		body       []byte
		visData    string
		insertedAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT body, visibility, inserted_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err := row.Scan(&body, &visData, &insertedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	vis, err := storage.UnmarshalVisibility([]byte(visData))
	if err != nil {
		return nil, err
	}
	return &storage.Document{
		ID:         id,
		Collection: collection,
		Body:       body,
		Visibility: vis,
		InsertedAt: time.UnixMilli(insertedAt).UTC(),
	}, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, cred security.Credential, collection string) (int, error) {
	if err := s.ready(cred); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
