// Package generation turns retrieved chunks into a grounded answer: it packs
// the best chunks into a token budget, prompts the model and records the
// exchange.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragstack/internal/artifact"
	"ragstack/internal/core"
	"ragstack/internal/retrieval"
)

const defaultContextTokens = 3000

// Retriever is the slice of the retrieval engine the orchestrator needs.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, opts retrieval.Options) ([]core.SearchResult, error)
}

// ContextChunk records how one retrieved chunk entered the prompt, with its
// provenance metadata echoed from the search result.
type ContextChunk struct {
	ChunkID   string             `json:"chunk_id"`
	Rank      int                `json:"rank"`
	Score     float64            `json:"score"`
	Tokens    int                `json:"tokens"`
	Truncated bool               `json:"truncated,omitempty"`
	Meta      core.ChunkMetadata `json:"metadata"`
}

// Record is the persisted outcome of one successful generation.
type Record struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Model      string         `json:"model"`
	Context    []ContextChunk `json:"context"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Options tunes one generation call. Retrieval carries the search knobs;
// MaxContextTokens bounds how much chunk text enters the prompt.
type Options struct {
	Retrieval        retrieval.Options `json:"retrieval"`
	MaxContextTokens int               `json:"max_context_tokens,omitempty"`
}

// Orchestrator drives retrieve, pack, prompt, persist.
type Orchestrator struct {
	retriever Retriever
	provider  core.GenerationProvider
	counter   TokenCounter
	artifacts *artifact.Store
	log       *zap.Logger
}

// NewOrchestrator wires the pipeline stages together. A nil logger falls
// back to no-op.
func NewOrchestrator(retriever Retriever, provider core.GenerationProvider, counter TokenCounter, artifacts *artifact.Store, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		retriever: retriever,
		provider:  provider,
		counter:   counter,
		artifacts: artifacts,
		log:       log,
	}
}

// Generate answers the question from the collection's content. Chunks enter
// the prompt in rank order until the token budget is spent; the chunk that
// straddles the budget is cut at a word boundary rather than dropped. The
// record is persisted only after the provider succeeds.
func (o *Orchestrator) Generate(ctx context.Context, collection, question string, opts Options) (*Record, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", core.ErrInvalidInput)
	}
	budget := opts.MaxContextTokens
	if budget <= 0 {
		budget = defaultContextTokens
	}

	results, err := o.retriever.Retrieve(ctx, collection, question, opts.Retrieval)
	if err != nil {
		return nil, err
	}

	texts, used, err := o.packContext(results, budget)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(question, texts)
	answer, err := o.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, &core.GenerationError{Model: o.provider.Model(), Cause: err}
	}

	record := &Record{
		ID:         uuid.NewString(),
		Collection: collection,
		Question:   question,
		Answer:     answer,
		Model:      o.provider.Model(),
		Context:    used,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.artifacts.SaveGeneration(record.ID, record); err != nil {
		return nil, fmt.Errorf("persist generation %s: %w", record.ID, err)
	}

	o.log.Info("generation complete",
		zap.String("collection", collection),
		zap.String("generation_id", record.ID),
		zap.Int("context_chunks", len(used)))
	return record, nil
}

// packContext selects chunk texts in rank order under the token budget.
func (o *Orchestrator) packContext(results []core.SearchResult, budget int) ([]string, []ContextChunk, error) {
	var texts []string
	var used []ContextChunk
	remaining := budget
	for _, r := range results {
		if remaining <= 0 {
			break
		}
		tokens, err := o.counter.Count(r.Text)
		if err != nil {
			return nil, nil, fmt.Errorf("count tokens for chunk %s: %w", r.ChunkID, err)
		}
		if tokens <= remaining {
			texts = append(texts, r.Text)
			used = append(used, ContextChunk{
				ChunkID: r.ChunkID,
				Rank:    r.Rank,
				Score:   r.Score,
				Tokens:  tokens,
				Meta:    r.Meta,
			})
			remaining -= tokens
			continue
		}
		cut, cutTokens, err := o.truncateToBudget(r.Text, remaining)
		if err != nil {
			return nil, nil, fmt.Errorf("truncate chunk %s: %w", r.ChunkID, err)
		}
		if cut != "" {
			texts = append(texts, cut)
			used = append(used, ContextChunk{
				ChunkID:   r.ChunkID,
				Rank:      r.Rank,
				Score:     r.Score,
				Tokens:    cutTokens,
				Truncated: true,
				Meta:      r.Meta,
			})
		}
		break
	}
	return texts, used, nil
}

// truncateToBudget returns the longest word-boundary prefix of text that
// fits the budget, via binary search over the word count.
func (o *Orchestrator) truncateToBudget(text string, budget int) (string, int, error) {
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	best := ""
	bestTokens := 0
	for lo < hi {
		mid := (lo + hi + 1) / 2
		candidate := strings.Join(words[:mid], " ")
		tokens, err := o.counter.Count(candidate)
		if err != nil {
			return "", 0, err
		}
		if tokens <= budget {
			best = candidate
			bestTokens = tokens
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return best, bestTokens, nil
}

func buildPrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "[Context %d]\n%s\n\n", i+1, c)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
