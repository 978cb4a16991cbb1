package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	examdump "github.com/jwkoo/examdump"
)

type handler struct {
	engine examdump.Engine
}

func newHandler(e examdump.Engine) *handler {
	return &handler{engine: e}
}

// POST /extract
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			// Uploaded files are transient, so embed the images.
			res, err := h.engine.Extract(ctx, tmpPath, examdump.WithInlineImages())
			if err != nil {
				writeExtractError(w, err)
				slog.Error("extract error", "file", safeName, "error", err)
				return
			}

			writeJSON(w, http.StatusOK, res)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path         string `json:"path"`
		Force        bool   `json:"force,omitempty"`
		InlineImages bool   `json:"inline_images,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []examdump.ExtractOption
	if req.Force {
		opts = append(opts, examdump.WithForceReextract())
	}
	if req.InlineImages {
		opts = append(opts, examdump.WithInlineImages())
	}

	res, err := h.engine.Extract(ctx, absPath, opts...)
	if err != nil {
		writeExtractError(w, err)
		slog.Error("extract error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GET /extractions
func (h *handler) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := h.engine.ListExtractions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list extractions")
		slog.Error("list extractions error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"extractions": extractions,
	})
}

// GET /extractions/{id}
func (h *handler) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid extraction id")
		return
	}

	extractions, err := h.engine.ListExtractions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load extraction")
		slog.Error("get extraction error", "extraction_id", id, "error", err)
		return
	}
	for _, e := range extractions {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeError(w, http.StatusNotFound, "extraction not found")
}

// DELETE /extractions/{id}
func (h *handler) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid extraction id")
		return
	}

	if err := h.engine.DeleteExtraction(r.Context(), id); err != nil {
		if errors.Is(err, examdump.ErrExtractionNotFound) {
			writeError(w, http.StatusNotFound, "extraction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "extraction_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /questions?q=
func (h *handler) handleSearchQuestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	hits, err := h.engine.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		slog.Error("search error", "query", query, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":     query,
		"questions": hits,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// writeExtractError maps pipeline errors to client-facing status codes.
func writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, examdump.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document format")
	case errors.Is(err, examdump.ErrUnreadableDocument):
		writeError(w, http.StatusUnprocessableEntity, "document could not be read")
	case errors.Is(err, examdump.ErrNoQuestionMarkers):
		writeError(w, http.StatusUnprocessableEntity, "no question markers found in document")
	default:
		writeError(w, http.StatusInternalServerError, "extraction failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
