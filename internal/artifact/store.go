// Package artifact persists pipeline outputs as JSON files under a base
// directory, one numbered subdirectory per stage. The files are diagnostic
// artifacts: every ingest and search leaves an inspectable trace.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ragstack/internal/core"
)

// Stage directories, in pipeline order.
const (
	DirChunks      = "01-chunks"
	DirEmbeddings  = "02-embeddings"
	DirCollections = "03-collections"
	DirSearches    = "04-search-results"
	DirGenerations = "05-generations"
)

// Store writes artifacts under BaseDir. A zero BaseDir disables the store:
// every write becomes a no-op, so callers never branch.
type Store struct {
	baseDir string
}

// NewStore roots a store at dir. Empty dir disables persistence.
func NewStore(dir string) *Store {
	return &Store{baseDir: dir}
}

// Enabled reports whether writes will land on disk.
func (s *Store) Enabled() bool { return s.baseDir != "" }

// SaveJSON writes v indented under stage/name.json, creating directories as
// needed. The write goes through a temp file and rename so a crash never
// leaves a half-written artifact.
func (s *Store) SaveJSON(stage, name string, v any) error {
	if !s.Enabled() {
		return nil
	}
	dir := filepath.Join(s.baseDir, stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s/%s: %w", stage, name, err)
	}
	path := filepath.Join(dir, name+".json")
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish artifact %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads stage/name.json into v.
func (s *Store) LoadJSON(stage, name string, v any) error {
	if !s.Enabled() {
		return fmt.Errorf("%w: artifact store disabled", core.ErrNotFound)
	}
	path := filepath.Join(s.baseDir, stage, name+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: artifact %s/%s", core.ErrNotFound, stage, name)
	}
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

// SaveChunks persists a document's chunk sequence.
func (s *Store) SaveChunks(docID, strategy string, chunks []core.Chunk) error {
	return s.SaveJSON(DirChunks, fmt.Sprintf("%s.%s", docID, strategy), chunks)
}

// SearchArtifact is the persisted shape of one search: the query that
// produced the results alongside the ranked results themselves.
type SearchArtifact struct {
	Query      string              `json:"query"`
	Collection string              `json:"collection"`
	Timestamp  time.Time           `json:"timestamp"`
	Results    []core.SearchResult `json:"results"`
}

// SaveSearch persists one search under a timestamped name.
func (s *Store) SaveSearch(collection, query string, results []core.SearchResult) error {
	art := SearchArtifact{
		Query:      query,
		Collection: collection,
		Timestamp:  time.Now().UTC(),
		Results:    results,
	}
	name := fmt.Sprintf("%s.%s", collection, art.Timestamp.Format("20060102T150405.000"))
	return s.SaveJSON(DirSearches, name, art)
}

// SaveGeneration persists a completed generation record keyed by its ID.
func (s *Store) SaveGeneration(id string, record any) error {
	return s.SaveJSON(DirGenerations, id, record)
}
