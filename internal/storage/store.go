// Package storage reads and writes whole book documents on a local disk,
// in Google Cloud Storage or in PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrIO wraps every failure reported by a Store.
var ErrIO = errors.New("storage i/o error")

// Store holds one document.
type Store interface {
	// Exists reports whether the document has been created.
	Exists(ctx context.Context) (bool, error)

	// EnsureCreated writes an empty document when none exists yet.
	EnsureCreated(ctx context.Context) error

	// ReadAll returns the whole document.
	ReadAll(ctx context.Context) ([]byte, error)

	// WriteAll replaces the whole document.
	WriteAll(ctx context.Context, data []byte) error

	// Location describes where the document lives, for logs and messages.
	Location() string
}

func ioError(op, location string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, location, ErrIO, err)
}

// Copy replaces the document in dst with the one in src.
func Copy(ctx context.Context, dst, src Store) error {
	data, err := src.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("Copy: %w", err)
	}
	if err := dst.WriteAll(ctx, data); err != nil {
		return fmt.Errorf("Copy: %w", err)
	}
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*GCSStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
