package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragstack/internal/chunking"
	"ragstack/internal/ingest"
	"ragstack/internal/vectorindex"
)

const maxUploadBytes = 64 << 20

type DocumentHandler struct {
	pipeline *ingest.Pipeline
	validate *validator.Validate
	log      *zap.Logger
}

func NewDocumentHandler(pipeline *ingest.Pipeline, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, validate: validator.New(), log: log}
}

type uploadForm struct {
	Collection string `validate:"required,min=1,max=128"`
	Strategy   string `validate:"omitempty,oneof=fixed_size page_based heading_based semantic"`
}

// Upload ingests one multipart file into a collection. Chunking knobs ride
// along as form fields; absent fields use the strategy defaults.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}

	form := uploadForm{
		Collection: r.FormValue("collection"),
		Strategy:   r.FormValue("strategy"),
	}
	if err := h.validate.Struct(form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	docID := r.FormValue("doc_id")
	if docID == "" {
		docID = uuid.NewString()
	}

	params := chunking.Params{
		ChunkSize:       formInt(r, "chunk_size"),
		Overlap:         formInt(r, "overlap"),
		PagesPerChunk:   formInt(r, "pages_per_chunk"),
		MaxHeadingLevel: formInt(r, "max_heading_level"),
		MergeThreshold:  formFloat(r, "merge_threshold"),
	}

	result, err := h.pipeline.Ingest(r.Context(), ingest.Request{
		Collection: vectorindex.SanitizeName(form.Collection),
		DocID:      docID,
		Filename:   filepath.Base(header.Filename),
		Data:       data,
		Strategy:   form.Strategy,
		Params:     params,
		Metric:     vectorindex.Metric(r.FormValue("metric")),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Delete removes one document's chunks from a collection.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	docID := chi.URLParam(r, "docID")
	strategy := r.URL.Query().Get("strategy")

	if err := h.pipeline.DeleteDocument(r.Context(), collection, docID, strategy); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	if err != nil {
		return 0
	}
	return n
}

func formFloat(r *http.Request, key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue(key)), 64)
	if err != nil {
		return 0
	}
	return f
}
