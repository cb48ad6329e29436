package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/types"
)

func testCollectionContract(t *testing.T, coll interfaces.Collection) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get all", func(t *testing.T) {
		require.NoError(t, coll.Put(ctx, "a", []byte(`{"v":1}`)))
		require.NoError(t, coll.Put(ctx, "b", []byte(`{"v":2}`)))

		all, err := coll.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.JSONEq(t, `{"v":1}`, string(all["a"]))
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, coll.Put(ctx, "a", []byte(`{"v":10}`)))
		all, err := coll.GetAll(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":10}`, string(all["a"]))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, coll.Delete(ctx, "a"))
		all, err := coll.GetAll(ctx)
		require.NoError(t, err)
		assert.NotContains(t, all, "a")

		// Missing ids are not an error
		assert.NoError(t, coll.Delete(ctx, "never-existed"))
	})

	t.Run("size is positive while records exist", func(t *testing.T) {
		size, err := coll.Size(ctx)
		require.NoError(t, err)
		assert.Positive(t, size)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, coll.Clear(ctx))
		all, err := coll.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestMemoryCollection(t *testing.T) {
	testCollectionContract(t, NewMemoryCollection())
}

func TestFileCollection(t *testing.T) {
	dir := t.TempDir()
	coll, err := NewFileCollection(dir, "contract", logger.NewTestLogger())
	require.NoError(t, err)
	defer coll.Close()

	testCollectionContract(t, coll)
}

func TestFileCollectionReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	log := logger.NewTestLogger()

	first, err := NewFileCollection(dir, "notes", log)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "k", []byte(`"hello"`)))
	require.NoError(t, first.Close())

	second, err := NewFileCollection(dir, "notes", log)
	require.NoError(t, err)
	defer second.Close()

	all, err := second.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(all["k"]))
}

func TestFileCollectionCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0644))

	_, err := NewFileCollection(dir, "bad", logger.NewTestLogger())
	assert.Error(t, err)
}

func TestFileCollectionWatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	log := logger.NewTestLogger()

	coll, err := NewFileCollection(dir, "shared", log)
	require.NoError(t, err)
	defer coll.Close()

	changed := make(chan struct{}, 1)
	require.NoError(t, coll.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	// Another writer replaces the file out from under us
	time.Sleep(300 * time.Millisecond)
	external := []byte(`{"x": {"v": 42}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.json"), external, 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never observed the external write")
	}

	all, err := coll.GetAll(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v": 42}`, string(all["x"]))
}

func TestNewStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		cfg := config.NewStorageConfig()
		store, err := NewStore(cfg, logger.NewTestLogger())
		require.NoError(t, err)
		defer store.Close()

		coll, err := store.Collection("anything")
		require.NoError(t, err)
		assert.NotNil(t, coll)
	})

	t.Run("file backend", func(t *testing.T) {
		cfg := config.NewStorageConfig()
		cfg.Backend = types.StorageBackendFile
		cfg.Dir = t.TempDir()

		store, err := NewStore(cfg, logger.NewTestLogger())
		require.NoError(t, err)
		defer store.Close()

		coll, err := store.Collection("docs")
		require.NoError(t, err)
		require.NoError(t, coll.Put(context.Background(), "id", []byte(`{}`)))
		assert.FileExists(t, filepath.Join(cfg.Dir, "docs.json"))
	})

	t.Run("file backend follows external changes when configured", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewStorageConfig()
		cfg.Backend = types.StorageBackendFile
		cfg.Dir = dir
		cfg.WatchChanges = true

		store, err := NewStore(cfg, logger.NewTestLogger())
		require.NoError(t, err)
		defer store.Close()

		coll, err := store.Collection("shared")
		require.NoError(t, err)

		time.Sleep(300 * time.Millisecond)
		external := []byte(`{"x": {"v": 7}}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.json"), external, 0644))

		assert.Eventually(t, func() bool {
			all, err := coll.GetAll(context.Background())
			if err != nil {
				return false
			}
			raw, ok := all["x"]
			return ok && string(raw) == `{"v": 7}`
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("unknown backend rejected", func(t *testing.T) {
		cfg := config.NewStorageConfig()
		cfg.Backend = types.StorageBackend("etched-in-stone")
		_, err := NewStore(cfg, logger.NewTestLogger())
		assert.Error(t, err)
	})

	t.Run("nil config rejected", func(t *testing.T) {
		_, err := NewStore(nil, logger.NewTestLogger())
		assert.Error(t, err)
	})
}
