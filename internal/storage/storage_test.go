package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/quickcart/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	objects map[string][]byte
	last    Object
	closed  bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}}
}

func (m *memoryBackend) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryBackend) PutObject(ctx context.Context, obj Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	m.objects[obj.Key] = data
	m.last = obj
	return nil
}

func (m *memoryBackend) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) RemoveObject(ctx context.Context, key string) error {
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "images" }

func (m *memoryBackend) Close() error {
	m.closed = true
	return nil
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestOpenMinioRequiresEndpoint(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendMinio})
	assert.ErrorContains(t, err, "endpoint")
}

func TestOpenGCSRequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendGCS})
	assert.ErrorContains(t, err, "bucket")
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("products/a.png"))
	for _, key := range []string{"", " ", "/products/a.png", "products/../secret", "products//a.png", "products/./a.png"} {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, key)
	}
}

func TestStorageRoundTrip(t *testing.T) {
	backend := newMemoryBackend()
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "products/a.png", bytes.NewReader([]byte("png")), 3, "image/png"))
	assert.Equal(t, "image/png", backend.last.ContentType)
	assert.Equal(t, DefaultCacheControl, backend.last.CacheControl)
	assert.EqualValues(t, 3, backend.last.Size)

	rc, err := s.Get(ctx, "products/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "products/a.png"))
	_, err = s.Get(ctx, "products/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "products/a.png"), "deleting twice is not an error")
	assert.Equal(t, "images", s.Bucket())

	require.NoError(t, s.Close())
	assert.True(t, backend.closed)
}

func TestStorageRejectsBadKeys(t *testing.T) {
	s := NewStorage(newMemoryBackend())
	ctx := context.Background()

	err := s.Put(ctx, "../etc/passwd", bytes.NewReader(nil), 0, "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = s.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageDefaultsContentType(t *testing.T) {
	backend := newMemoryBackend()
	require.NoError(t, NewStorage(backend).Put(context.Background(), "products/b", bytes.NewReader([]byte("x")), 1, ""))
	assert.Equal(t, "application/octet-stream", backend.last.ContentType)
}
