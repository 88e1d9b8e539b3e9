package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createDocumentsTable = `
	CREATE TABLE IF NOT EXISTS books_documents (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// PostgresStore keeps the document as one row of books_documents.
type PostgresStore struct {
	pool *pgxpool.Pool
	Name string
}

// NewPostgresStore connects to uri and creates the documents table when it
// is missing.
func NewPostgresStore(ctx context.Context, uri, name string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresStore: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewPostgresStore: create table: %w", err)
	}
	return &PostgresStore{pool: pool, Name: name}, nil
}

func (s *PostgresStore) Location() string {
	return "postgres:books_documents/" + s.Name
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM books_documents WHERE name = $1)",
		s.Name,
	).Scan(&exists)
	if err != nil {
		return false, ioError("query", s.Location(), err)
	}
	return exists, nil
}

func (s *PostgresStore) EnsureCreated(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO books_documents (name, content) VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING`,
		s.Name, string(xmlcodec.EmptyDocument()),
	)
	if err != nil {
		return ioError("insert", s.Location(), err)
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context) ([]byte, error) {
	var content string
	err := s.pool.QueryRow(ctx,
		"SELECT content FROM books_documents WHERE name = $1",
		s.Name,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ioError("read", s.Location(), fmt.Errorf("document does not exist"))
	}
	if err != nil {
		return nil, ioError("read", s.Location(), err)
	}
	return []byte(content), nil
}

func (s *PostgresStore) WriteAll(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO books_documents (name, content, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		s.Name, string(data),
	)
	if err != nil {
		return ioError("write", s.Location(), err)
	}
	return nil
}
