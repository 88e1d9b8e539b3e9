package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"google.golang.org/api/option"
)

// GCSStore keeps the document in a Google Cloud Storage object.
type GCSStore struct {
	client *storage.Client
	Bucket string
	Object string
}

// NewGCSStore creates a storage client. Credentials come from opts or,
// when none are given, Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, object string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, Bucket: bucket, Object: object}, nil
}

func (s *GCSStore) Location() string {
	return fmt.Sprintf("gs://%s/%s", s.Bucket, s.Object)
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) object() *storage.ObjectHandle {
	return s.client.Bucket(s.Bucket).Object(s.Object)
}

func (s *GCSStore) Exists(ctx context.Context) (bool, error) {
	_, err := s.object().Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError("stat", s.Location(), err)
	}
	return true, nil
}

func (s *GCSStore) EnsureCreated(ctx context.Context) error {
	ok, err := s.Exists(ctx)
	if err != nil || ok {
		return err
	}
	return s.WriteAll(ctx, xmlcodec.EmptyDocument())
}

func (s *GCSStore) ReadAll(ctx context.Context) ([]byte, error) {
	r, err := s.object().NewReader(ctx)
	if err != nil {
		return nil, ioError("open reader", s.Location(), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioError("read", s.Location(), err)
	}
	return data, nil
}

// WriteAll uploads data. The object is replaced only when the upload is
// finalized.
func (s *GCSStore) WriteAll(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.object().NewWriter(ctx)
	w.ContentType = "application/xml"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return ioError("write", s.Location(), err)
	}
	if err := w.Close(); err != nil {
		return ioError("finalize upload", s.Location(), err)
	}
	return nil
}
