package cart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Load(Key)
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, store.Save(Key, []byte(`[]`)))
	data, err := store.Load(Key)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")

	require.NoError(t, store.Clear(Key))
	require.NoError(t, store.Clear(Key))
	_, err = store.Load(Key)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save("../escape", []byte("x")))
}

func TestFileStoreBacksEngine(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	e, err := New(store)
	require.NoError(t, err)
	require.NoError(t, e.Add(product("p1", "4.99")))

	reopened, err := New(store)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.ItemCount())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Save("k", buf))
	buf[0] = 'z'
	data, err := store.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
