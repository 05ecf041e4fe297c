package generation_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/artifact"
	"ragstack/internal/core"
	"ragstack/internal/generation"
	"ragstack/internal/retrieval"
)

// wordCounter counts one token per word, so budgets map directly to word
// counts in assertions.
type wordCounter struct{}

func (wordCounter) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

type stubRetriever struct {
	results []core.SearchResult
	err     error
}

func (s *stubRetriever) Retrieve(_ context.Context, _, _ string, _ retrieval.Options) ([]core.SearchResult, error) {
	return s.results, s.err
}

type stubProvider struct {
	prompt string
	answer string
	err    error
}

func (s *stubProvider) Model() string { return "stub-llm" }

func (s *stubProvider) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func resultOf(id string, rank int, words int) core.SearchResult {
	return core.SearchResult{
		ChunkID: id,
		Rank:    rank,
		Score:   1 / float64(rank),
		Text:    strings.TrimSpace(strings.Repeat(id+"word ", words)),
	}
}

func TestGeneratePacksInRankOrder(t *testing.T) {
	retriever := &stubRetriever{results: []core.SearchResult{
		resultOf("a", 1, 10),
		resultOf("b", 2, 10),
		resultOf("c", 3, 10),
	}}
	provider := &stubProvider{answer: "the answer"}
	store := artifact.NewStore(t.TempDir())
	orch := generation.NewOrchestrator(retriever, provider, wordCounter{}, store, nil)

	record, err := orch.Generate(context.Background(), "docs", "what is it?",
		generation.Options{MaxContextTokens: 25})
	require.NoError(t, err)

	// 10 + 10 fit; chunk c gets the remaining 5 tokens, cut on a word
	// boundary.
	require.Len(t, record.Context, 3)
	assert.Equal(t, "a", record.Context[0].ChunkID)
	assert.Equal(t, 10, record.Context[0].Tokens)
	assert.False(t, record.Context[0].Truncated)
	assert.Equal(t, "c", record.Context[2].ChunkID)
	assert.Equal(t, 5, record.Context[2].Tokens)
	assert.True(t, record.Context[2].Truncated)

	assert.Contains(t, provider.prompt, "[Context 1]")
	assert.Contains(t, provider.prompt, "what is it?")
	assert.Equal(t, "the answer", record.Answer)
	assert.Equal(t, "stub-llm", record.Model)
}

func TestGenerateEchoesChunkMetadata(t *testing.T) {
	result := resultOf("a", 1, 5)
	result.Meta = core.ChunkMetadata{
		DocID:     "guide",
		PageStart: 2,
		PageEnd:   3,
		Strategy:  "fixed_size",
		HasTable:  true,
	}
	retriever := &stubRetriever{results: []core.SearchResult{result}}
	provider := &stubProvider{answer: "ok"}
	store := artifact.NewStore(t.TempDir())
	orch := generation.NewOrchestrator(retriever, provider, wordCounter{}, store, nil)

	record, err := orch.Generate(context.Background(), "docs", "q", generation.Options{})
	require.NoError(t, err)
	require.Len(t, record.Context, 1)
	assert.Equal(t, result.Meta, record.Context[0].Meta)

	// Provenance survives the round trip to disk.
	var loaded generation.Record
	require.NoError(t, store.LoadJSON(artifact.DirGenerations, record.ID, &loaded))
	require.Len(t, loaded.Context, 1)
	assert.Equal(t, "guide", loaded.Context[0].Meta.DocID)
	assert.True(t, loaded.Context[0].Meta.HasTable)
}

func TestGenerateDropsChunkWhenBudgetExhausted(t *testing.T) {
	retriever := &stubRetriever{results: []core.SearchResult{
		resultOf("a", 1, 10),
		resultOf("b", 2, 10),
	}}
	provider := &stubProvider{answer: "ok"}
	store := artifact.NewStore(t.TempDir())
	orch := generation.NewOrchestrator(retriever, provider, wordCounter{}, store, nil)

	record, err := orch.Generate(context.Background(), "docs", "q",
		generation.Options{MaxContextTokens: 10})
	require.NoError(t, err)
	require.Len(t, record.Context, 1)
	assert.Equal(t, "a", record.Context[0].ChunkID)
}

func TestGenerateProviderFailure(t *testing.T) {
	retriever := &stubRetriever{results: []core.SearchResult{resultOf("a", 1, 5)}}
	cause := errors.New("rate limited")
	provider := &stubProvider{err: cause}
	dir := t.TempDir()
	orch := generation.NewOrchestrator(retriever, provider, wordCounter{}, artifact.NewStore(dir), nil)

	_, err := orch.Generate(context.Background(), "docs", "q", generation.Options{})
	require.Error(t, err)

	var gerr *core.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "stub-llm", gerr.Model)
	assert.ErrorIs(t, err, cause)

	// Nothing persisted on failure.
	matches, globErr := filepath.Glob(filepath.Join(dir, artifact.DirGenerations, "*.json"))
	require.NoError(t, globErr)
	assert.Empty(t, matches)
}

func TestGeneratePersistsRecord(t *testing.T) {
	retriever := &stubRetriever{results: []core.SearchResult{resultOf("a", 1, 5)}}
	provider := &stubProvider{answer: "done"}
	dir := t.TempDir()
	store := artifact.NewStore(dir)
	orch := generation.NewOrchestrator(retriever, provider, wordCounter{}, store, nil)

	record, err := orch.Generate(context.Background(), "docs", "q", generation.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)

	var loaded generation.Record
	require.NoError(t, store.LoadJSON(artifact.DirGenerations, record.ID, &loaded))
	assert.Equal(t, record.Answer, loaded.Answer)
	assert.Equal(t, record.Question, loaded.Question)
}

func TestGenerateEmptyQuestion(t *testing.T) {
	orch := generation.NewOrchestrator(&stubRetriever{}, &stubProvider{}, wordCounter{}, artifact.NewStore(""), nil)
	_, err := orch.Generate(context.Background(), "docs", "  ", generation.Options{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestGenerateRetrievalErrorPropagates(t *testing.T) {
	retriever := &stubRetriever{err: core.ErrModelMismatch}
	orch := generation.NewOrchestrator(retriever, &stubProvider{}, wordCounter{}, artifact.NewStore(""), nil)
	_, err := orch.Generate(context.Background(), "docs", "q", generation.Options{})
	assert.ErrorIs(t, err, core.ErrModelMismatch)
}
