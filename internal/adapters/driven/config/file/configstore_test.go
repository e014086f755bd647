package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetSaveLoad(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	store.Set("confluence.base_url", "https://wiki.example.com")
	store.Set("rag.chunk_size", 800)
	store.Set("rag.temperature", 0.2)
	store.Set("verbose", true)
	require.NoError(t, store.Save())

	// A fresh store reads the persisted values back.
	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://wiki.example.com", reloaded.GetString("confluence.base_url"))
	assert.Equal(t, 800, reloaded.GetInt("rag.chunk_size"))
	assert.Equal(t, 0.2, reloaded.GetFloat("rag.temperature"))
	assert.True(t, reloaded.GetBool("verbose"))
}

func TestConfigStore_MissingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, "", store.GetString("nope"))
	assert.Equal(t, 0, store.GetInt("nope"))
	assert.Equal(t, 0.0, store.GetFloat("nope"))
	assert.False(t, store.GetBool("nope"))
}

func TestConfigStore_TypeMismatchesAreZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	store.Set("key", "not a number")
	assert.Equal(t, 0, store.GetInt("key"))
	assert.Equal(t, 0.0, store.GetFloat("key"))
	assert.False(t, store.GetBool("key"))
}

func TestConfigStore_FloatFromInt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	store.Set("rag.temperature", 1)
	require.NoError(t, store.Save())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, reloaded.GetFloat("rag.temperature"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	store.Set("confluence.token", "secret")
	require.NoError(t, store.Save())

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Path(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}
