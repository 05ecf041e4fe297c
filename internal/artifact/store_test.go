package artifact_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/artifact"
	"ragstack/internal/core"
)

func TestSaveAndLoadJSON(t *testing.T) {
	store := artifact.NewStore(t.TempDir())

	in := map[string]int{"a": 1, "b": 2}
	require.NoError(t, store.SaveJSON("01-chunks", "doc", in))

	var out map[string]int
	require.NoError(t, store.LoadJSON("01-chunks", "doc", &out))
	assert.Equal(t, in, out)
}

func TestSaveJSONOverwrites(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	require.NoError(t, store.SaveJSON("s", "n", "first"))
	require.NoError(t, store.SaveJSON("s", "n", "second"))

	var out string
	require.NoError(t, store.LoadJSON("s", "n", &out))
	assert.Equal(t, "second", out)
}

func TestLoadMissingArtifact(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	var out any
	err := store.LoadJSON("s", "absent", &out)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDisabledStoreIsNoOp(t *testing.T) {
	store := artifact.NewStore("")
	assert.False(t, store.Enabled())
	assert.NoError(t, store.SaveJSON("s", "n", "x"))

	var out any
	assert.ErrorIs(t, store.LoadJSON("s", "n", &out), core.ErrNotFound)
}

func TestSaveChunksLayout(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(dir)
	chunks := []core.Chunk{{ID: "d:0", Text: "hello"}}
	require.NoError(t, store.SaveChunks("d", "fixed_size", chunks))

	_, err := os.Stat(filepath.Join(dir, artifact.DirChunks, "d.fixed_size.json"))
	assert.NoError(t, err)
}

func TestSaveSearchPersistsQueryEnvelope(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(dir)
	results := []core.SearchResult{{ChunkID: "d:0", Score: 0.9, Rank: 1, Text: "hit"}}
	require.NoError(t, store.SaveSearch("docs", "what is it?", results))

	matches, err := filepath.Glob(filepath.Join(dir, artifact.DirSearches, "docs.*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var art artifact.SearchArtifact
	require.NoError(t, json.Unmarshal(data, &art))
	assert.Equal(t, "what is it?", art.Query)
	assert.Equal(t, "docs", art.Collection)
	assert.False(t, art.Timestamp.IsZero())
	require.Len(t, art.Results, 1)
	assert.Equal(t, "d:0", art.Results[0].ChunkID)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(dir)
	require.NoError(t, store.SaveJSON("s", "n", map[string]string{"k": "v"}))

	tmps, err := filepath.Glob(filepath.Join(dir, "s", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}
