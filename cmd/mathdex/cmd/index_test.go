package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mathdex/internal/config"
	"github.com/Aman-CERP/mathdex/internal/store"
)

func writeRecord(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCollectRecordFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "one.json", `{}`)

	files, err := collectRecordFiles(filepath.Join(dir, "one.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "one.json")}, files)
}

func TestCollectRecordFiles_DirectoryIsWalkedInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeRecord(t, dir, "b.json", `{}`)
	writeRecord(t, dir, "a.json", `{}`)
	writeRecord(t, filepath.Join(dir, "sub"), "c.json", `{}`)
	writeRecord(t, dir, "notes.txt", "ignored")

	files, err := collectRecordFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "sub", "c.json"),
	}, files, "ordering must be stable so re-runs assign the same IDs")
}

func TestCollectRecordFiles_MissingPath(t *testing.T) {
	_, err := collectRecordFiles(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRunIndex_EndToEnd(t *testing.T) {
	// Given: a corpus of two records and a fresh data dir
	corpus := t.TempDir()
	writeRecord(t, corpus, "001.json", `{"url":"http://example.com/a","text":"A ball. $x^2$"}`)
	writeRecord(t, corpus, "002.json", `{"url":"http://example.com/b","text":"plain words only"}`)
	writeRecord(t, corpus, "003.json", `not json`)

	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Index.MaintenanceThrottle = 0

	// When: running the full ingestion
	require.NoError(t, runIndex(cfg, corpus))

	// Then: both valid records are durably indexed under sequential IDs
	urls, err := store.OpenBlobStore(cfg.StorePath("urls.db"))
	require.NoError(t, err)
	defer urls.Close()

	count, err := urls.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, ok, err := urls.Read(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://example.com/a", string(data))

	offsets, err := store.OpenOffsetStore(cfg.StorePath("offsets.db"))
	require.NoError(t, err)
	defer offsets.Close()

	// doc 1: "a", "ball", math sentinel
	n, err := offsets.CountForDoc(1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// doc 2: three plain words
	n, err = offsets.CountForDoc(2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mathIndex, err := store.OpenMathIndex(cfg.StorePath("math.db"))
	require.NoError(t, err)
	defer mathIndex.Close()

	subpaths, ok, err := mathIndex.Lookup(1, 2)
	require.NoError(t, err)
	require.True(t, ok, "the formula sits at position 2 of doc 1")
	assert.NotEmpty(t, subpaths)

	// the compressed text blob round-trips
	text, err := store.OpenBlobStore(cfg.StorePath("text.db"))
	require.NoError(t, err)
	defer text.Close()

	blob, ok, err := text.Read(1)
	require.NoError(t, err)
	require.True(t, ok)
	plain, err := store.GzipCodec{}.Decompress(blob)
	require.NoError(t, err)
	assert.Equal(t, "A ball. $x^2$", string(plain))
}
