package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ragstack/internal/config"
	"ragstack/internal/generation"
	"ragstack/internal/retrieval"
	"ragstack/internal/vectorindex"
)

type ChatHandler struct {
	orchestrator *generation.Orchestrator
	retrieval    config.RetrievalConfig
	maxTokens    int
	validate     *validator.Validate
	log          *zap.Logger
}

func NewChatHandler(orchestrator *generation.Orchestrator, retrievalDefaults config.RetrievalConfig, maxTokens int, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		retrieval:    retrievalDefaults,
		maxTokens:    maxTokens,
		validate:     validator.New(),
		log:          log,
	}
}

type chatRequest struct {
	Collection string              `json:"collection" validate:"required"`
	Question   string              `json:"question" validate:"required"`
	TopK       int                 `json:"top_k" validate:"gte=0"`
	MaxTokens  int                 `json:"max_context_tokens" validate:"gte=0"`
	Filter     *vectorindex.Filter `json:"filter,omitempty"`
}

// Query answers a question grounded in a collection's documents.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = h.retrieval.TopK
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}

	opts := generation.Options{
		Retrieval: retrieval.Options{
			TopK:     topK,
			MinWords: h.retrieval.MinWords,
			Filter:   req.Filter,
		},
		MaxContextTokens: maxTokens,
	}
	if h.retrieval.MinScore > 0 {
		score := h.retrieval.MinScore
		opts.Retrieval.MinScore = &score
	}

	record, err := h.orchestrator.Generate(r.Context(), req.Collection, req.Question, opts)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
