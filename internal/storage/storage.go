package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/quickcart/apiserver/config"
)

// DefaultCacheControl is attached to stored product images.
const DefaultCacheControl = "public, max-age=86400"

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object is a single upload.
type Object struct {
	Key          string
	Body         io.Reader
	Size         int64
	ContentType  string
	CacheControl string
}

// Backend is implemented by each object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, obj Object) error
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, key string) error
	Bucket() string
}

// Storage validates keys and applies upload defaults before delegating
// to a Backend.
type Storage struct {
	backend      Backend
	cacheControl string
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend, cacheControl: DefaultCacheControl}
}

// Open builds the backend named by cfg.Backend and ensures its bucket.
// It returns nil without error when storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend Backend
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case config.BackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// ValidateKey rejects keys that would escape the bucket namespace.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// Put uploads r under key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.backend.PutObject(ctx, Object{
		Key:          key,
		Body:         r,
		Size:         size,
		ContentType:  contentType,
		CacheControl: s.cacheControl,
	})
}

// Get opens a reader for an object. Missing objects and invalid keys
// yield ErrNotFound.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if ValidateKey(key) != nil {
		return nil, ErrNotFound
	}
	return s.backend.OpenObject(ctx, key)
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.backend.RemoveObject(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Bucket returns the backend's bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend when it holds a client connection.
func (s *Storage) Close() error {
	if closer, ok := s.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
