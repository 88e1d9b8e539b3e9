package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
)

// FileStore keeps the document in Dir/Name on the local file system.
type FileStore struct {
	Dir  string
	Name string
}

// NewFileStore returns a FileStore for dir/name.
func NewFileStore(dir, name string) *FileStore {
	return &FileStore{Dir: dir, Name: name}
}

// Path returns the full path of the document.
func (s *FileStore) Path() string {
	return filepath.Join(s.Dir, s.Name)
}

func (s *FileStore) Location() string {
	return s.Path()
}

// Exists reports whether the document is a regular file.
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError("stat", s.Path(), err)
	}
	return info.Mode().IsRegular(), nil
}

// EnsureCreated creates the directory and an empty document if needed.
func (s *FileStore) EnsureCreated(ctx context.Context) error {
	ok, err := s.Exists(ctx)
	if err != nil || ok {
		return err
	}
	return s.WriteAll(ctx, xmlcodec.EmptyDocument())
}

func (s *FileStore) ReadAll(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, ioError("read", s.Path(), err)
	}
	return data, nil
}

// WriteAll writes data to a temporary file next to the document and
// renames it over the document once synced.
func (s *FileStore) WriteAll(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return ioError("mkdir", s.Dir, err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+s.Name+".*.tmp")
	if err != nil {
		return ioError("create temp file in", s.Dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ioError("write", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ioError("sync", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("close", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return ioError("chmod", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return ioError("rename to", s.Path(), err)
	}
	return nil
}
