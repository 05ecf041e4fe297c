package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ragstack/internal/vectorindex"
)

type CollectionHandler struct {
	index vectorindex.Index
	log   *zap.Logger
}

func NewCollectionHandler(index vectorindex.Index, log *zap.Logger) *CollectionHandler {
	return &CollectionHandler{index: index, log: log}
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.index.ListCollections(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"collections": names})
}

func (h *CollectionHandler) Describe(w http.ResponseWriter, r *http.Request) {
	info, err := h.index.DescribeCollection(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *CollectionHandler) Drop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	if err := h.index.DropCollection(r.Context(), name); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("collection dropped", zap.String("collection", name))
	w.WriteHeader(http.StatusNoContent)
}
