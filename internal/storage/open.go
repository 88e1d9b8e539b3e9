package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/dvloznov/bookkeeper/internal/config"
)

// Open returns the store for the document called name in the backend cfg
// selects. The returned func releases any client the store holds.
func Open(ctx context.Context, cfg *config.Config, name string) (Store, func(), error) {
	switch cfg.Store {
	case config.StoreGCS:
		object := path.Join(path.Dir(cfg.GCSObject), name)
		s, err := NewGCSStore(ctx, cfg.GCSBucket, object, cfg.ClientOptions()...)
		if err != nil {
			return nil, nil, fmt.Errorf("Open: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.StorePostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURI, name)
		if err != nil {
			return nil, nil, fmt.Errorf("Open: %w", err)
		}
		return s, s.Close, nil
	default:
		return NewFileStore(cfg.DataDir, name), func() {}, nil
	}
}

// OpenBackup returns the backup target for the data file. With GCS_BUCKET
// set it is the object, or <dir of GCS_OBJECT>/backup/<data file> when
// object is empty; otherwise it is <data dir>/backup/<data file>.
func OpenBackup(ctx context.Context, cfg *config.Config, object string) (Store, func(), error) {
	if cfg.GCSBucket == "" {
		return NewFileStore(filepath.Join(cfg.DataDir, "backup"), cfg.DataFile), func() {}, nil
	}
	if object == "" {
		object = path.Join(path.Dir(cfg.GCSObject), "backup", cfg.DataFile)
	}
	s, err := NewGCSStore(ctx, cfg.GCSBucket, object, cfg.ClientOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenBackup: %w", err)
	}
	return s, func() { s.Close() }, nil
}
