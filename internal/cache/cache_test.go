package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key(NamespaceEmbedding, "hash", "512", "청년 일자리")
	b := Key(NamespaceEmbedding, "hash", "512", "청년 일자리")
	c := Key(NamespaceEmbedding, "hash", "5", "12청년 일자리")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "parts are separated before hashing")
	assert.True(t, strings.HasPrefix(a, "policyrag_v1_embedding_"))
	assert.NotEqual(t, a, Key(NamespaceWeb, "hash", "512", "청년 일자리"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, found := c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, found := c.Get("k")
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, found = c.Get("k")
	assert.False(t, found)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key(NamespaceWeb, "q")

	require.NoError(t, c.Set(key, []byte("payload"), 0))
	val, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, []byte("payload"), val)

	// Fresh instance over the same directory sees the entry.
	val, found = NewDiskCache(dir, time.Hour).Get(key)
	require.True(t, found)
	assert.Equal(t, []byte("payload"), val)

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key))
	_, found = c.Get(key)
	assert.False(t, found)
}

func TestDiskCache_ExpiredAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, c.Set("old", []byte("x"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, found := c.Get("old")
	assert.False(t, found)

	path := c.path("bad")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, found = c.Get("bad")
	assert.False(t, found)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDiskCache_NoTTL(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, found := c.Get("k")
	assert.True(t, found)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskCache(dir, time.Hour).Set("k", []byte("v"), 0))

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	_, found := c.memory.Get("k")
	require.False(t, found)

	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	_, found = c.memory.Get("k")
	assert.True(t, found)
}

func TestLayeredCache_MemoryOnly(t *testing.T) {
	c := NewLayeredCache(time.Minute, "", 0)
	assert.Nil(t, c.disk)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, found := c.Get("k")
	assert.True(t, found)

	require.NoError(t, c.Clear())
	_, found = c.Get("k")
	assert.False(t, found)
}
