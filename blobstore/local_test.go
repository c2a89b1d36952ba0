package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ifs "github.com/hupe1980/spfresh/internal/fs"
)

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)
	assert.Equal(t, dir, store.Root())

	data := []byte("hello world, this is a posting list")
	require.NoError(t, store.Put(ctx, "v000001/posting-00000003.bin", data))

	_, err := os.Stat(filepath.Join(dir, "v000001", "posting-00000003.bin"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "v000001/posting-00000003.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
	require.NoError(t, blob.Close())

	got, err := ReadAll(ctx, store, "v000001/posting-00000003.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Overwrite replaces contents.
	require.NoError(t, store.Put(ctx, "v000001/posting-00000003.bin", []byte("short")))
	got, err = ReadAll(ctx, store, "v000001/posting-00000003.bin")
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))

	require.NoError(t, store.Delete(ctx, "v000001/posting-00000003.bin"))
	require.NoError(t, store.Delete(ctx, "v000001/posting-00000003.bin"))

	_, err = store.Open(ctx, "v000001/posting-00000003.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	for _, name := range []string{"CURRENT", "MANIFEST-000002.bin", "v000002/heads.bin", "v000002/posting-00000000.bin", "v000003/heads.bin"} {
		require.NoError(t, store.Put(ctx, name, []byte(name)))
	}
	// A stray temporary file from an interrupted write.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v000002", "heads.bin.tmp-x"), nil, 0o644))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CURRENT",
		"MANIFEST-000002.bin",
		"v000002/heads.bin",
		"v000002/posting-00000000.bin",
		"v000003/heads.bin",
	}, all)

	v2, err := store.List(ctx, "v000002/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v000002/heads.bin", "v000002/posting-00000000.bin"}, v2)

	manifests, err := store.List(ctx, "MANIFEST-")
	require.NoError(t, err)
	assert.Equal(t, []string{"MANIFEST-000002.bin"}, manifests)

	missing, err := NewLocalStore(filepath.Join(dir, "nope")).List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalStorePutFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ffs := ifs.NewFaultyFS(nil)
	store := NewLocalStore(dir, WithFileSystem(ffs))

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.bin")))

	ffs.AddRule("CURRENT", ifs.Fault{FailAfterBytes: 3})
	err := store.Put(ctx, "CURRENT", []byte("MANIFEST-000002.bin"))
	assert.ErrorIs(t, err, ifs.ErrInjected)

	ffs.AddRule("CURRENT", ifs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err = store.Put(ctx, "CURRENT", []byte("MANIFEST-000002.bin"))
	assert.ErrorIs(t, err, ifs.ErrInjected)

	got, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001.bin", string(got))

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewLocalStore(t.TempDir())

	assert.ErrorIs(t, store.Put(ctx, "a", []byte("x")), context.Canceled)
	_, err := store.Open(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
