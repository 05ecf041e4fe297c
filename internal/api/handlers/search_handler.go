package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ragstack/internal/artifact"
	"ragstack/internal/config"
	"ragstack/internal/retrieval"
	"ragstack/internal/vectorindex"
)

type SearchHandler struct {
	engine    *retrieval.Engine
	artifacts *artifact.Store
	defaults  config.RetrievalConfig
	validate  *validator.Validate
	log       *zap.Logger
}

func NewSearchHandler(engine *retrieval.Engine, artifacts *artifact.Store, defaults config.RetrievalConfig, log *zap.Logger) *SearchHandler {
	return &SearchHandler{
		engine:    engine,
		artifacts: artifacts,
		defaults:  defaults,
		validate:  validator.New(),
		log:       log,
	}
}

type searchRequest struct {
	Collection string              `json:"collection" validate:"required"`
	Query      string              `json:"query" validate:"required"`
	TopK       int                 `json:"top_k" validate:"gte=0"`
	MinScore   *float64            `json:"min_score,omitempty"`
	MinWords   int                 `json:"min_words" validate:"gte=0"`
	Filter     *vectorindex.Filter `json:"filter,omitempty"`
}

// Search runs a retrieval query. Unset knobs fall back to the configured
// defaults; min_score: -1 disables the score floor entirely.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	opts := retrieval.Options{
		TopK:     req.TopK,
		MinScore: req.MinScore,
		MinWords: req.MinWords,
		Filter:   req.Filter,
	}
	if opts.TopK == 0 {
		opts.TopK = h.defaults.TopK
	}
	if opts.MinScore == nil && h.defaults.MinScore > 0 {
		score := h.defaults.MinScore
		opts.MinScore = &score
	} else if opts.MinScore != nil && *opts.MinScore < 0 {
		opts.MinScore = nil
	}
	if opts.MinWords == 0 {
		opts.MinWords = h.defaults.MinWords
	}

	results, err := h.engine.Retrieve(r.Context(), req.Collection, req.Query, opts)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.artifacts.SaveSearch(req.Collection, req.Query, results); err != nil {
		h.log.Warn("search artifact not saved", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": req.Collection,
		"results":    results,
	})
}
