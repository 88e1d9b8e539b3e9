package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dvloznov/bookkeeper/internal/config"
)

func TestOpenFileBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Store: config.StoreFile, DataDir: dir, DataFile: "data.xml"}

	s, closeFn, err := Open(context.Background(), cfg, "settings.xml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	fs, ok := s.(*FileStore)
	if !ok {
		t.Fatalf("Open returned %T, want *FileStore", s)
	}
	if want := filepath.Join(dir, "settings.xml"); fs.Path() != want {
		t.Errorf("Path() = %q, want %q", fs.Path(), want)
	}
}

func TestOpenBackupWithoutBucket(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Store: config.StoreFile, DataDir: dir, DataFile: "data.xml"}

	s, closeFn, err := OpenBackup(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("OpenBackup: %v", err)
	}
	defer closeFn()

	fs, ok := s.(*FileStore)
	if !ok {
		t.Fatalf("OpenBackup returned %T, want *FileStore", s)
	}
	if want := filepath.Join(dir, "backup", "data.xml"); fs.Path() != want {
		t.Errorf("Path() = %q, want %q", fs.Path(), want)
	}
}
