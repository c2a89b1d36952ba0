package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("heads")
	require.NoError(t, store.Put(ctx, "v000001/heads.bin", data))
	data[0] = 'X'

	got, err := ReadAll(ctx, store, "v000001/heads.bin")
	require.NoError(t, err)
	assert.Equal(t, "heads", string(got))

	blob, err := store.Open(ctx, "v000001/heads.bin")
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 2)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "v000001/posting-00000000.bin", nil))
	require.NoError(t, store.Put(ctx, "CURRENT", nil))
	names, err := store.List(ctx, "v000001/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v000001/heads.bin", "v000001/posting-00000000.bin"}, names)

	assert.True(t, store.Corrupt("v000001/heads.bin", 0))
	assert.False(t, store.Corrupt("v000001/heads.bin", 99))
	assert.False(t, store.Corrupt("missing", 0))
	got, err = ReadAll(ctx, store, "v000001/heads.bin")
	require.NoError(t, err)
	assert.NotEqual(t, "heads", string(got))

	require.NoError(t, store.Delete(ctx, "v000001/heads.bin"))
	_, err = store.Open(ctx, "v000001/heads.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

// chunkedStore hands out blobs that return at most 3 bytes per ReadAt.
type chunkedStore struct {
	*MemoryStore
}

type chunkedBlob struct {
	data []byte
}

func (c chunkedStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := c.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	data, _ := b.(Mappable).Bytes()
	return &chunkedBlob{data: data}, nil
}

func (b *chunkedBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), 3)], b.data[off:])
	return n, nil
}

func (b *chunkedBlob) Size() int64  { return int64(len(b.data)) }
func (b *chunkedBlob) Close() error { return nil }

func TestReadAllChunked(t *testing.T) {
	ctx := context.Background()
	store := chunkedStore{NewMemoryStore()}
	require.NoError(t, store.Put(ctx, "x", []byte("0123456789")))

	got, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))

	_, err = ReadAll(ctx, store, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
