// Package handler exposes the evaluation pipeline and the input library
// over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gradepipe/gradepipe/internal/document"
	"github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/pipeline"
	"github.com/gradepipe/gradepipe/internal/store"
)

// maxUploadBytes bounds one multipart evaluation request. Scanned
// answer sheets are a few MB per page.
const maxUploadBytes = 64 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	pipe  *pipeline.Pipeline
}

// New creates a new Handler.
func New(s *store.Store, p *pipeline.Pipeline) *Handler {
	return &Handler{store: s, pipe: p}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/api/evaluate", h.handleEvaluate)
	r.Get("/api/papers", h.handleListPapers)
	r.Post("/api/papers", h.handleSavePaper)
	r.Get("/api/papers/{paperID}", h.handleGetPaper)
	r.Get("/api/keys", h.handleListKeys)
	r.Post("/api/keys", h.handleSaveKey)
	r.Get("/api/keys/{keyID}", h.handleGetKey)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleEvaluate runs one evaluation. The answer sheet arrives as a
// multipart file; the question paper and solution key each arrive as a
// file (PDF text is extracted), a plain form field, or a reference to a
// stored library entry.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}

	sheet, _, err := r.FormFile("answer_sheet")
	if err != nil {
		writeError(w, http.StatusBadRequest, i18n.T(ctx, "error.sheet_required"))
		return
	}
	defer sheet.Close()
	sheetData, err := io.ReadAll(sheet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read answer sheet: "+err.Error())
		return
	}

	pages, err := document.LoadPages(sheetData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "load answer sheet: "+err.Error())
		return
	}

	paperText, err := h.resolveText(r, "question_paper", "question_paper_text", "paper_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if paperText == "" {
		writeError(w, http.StatusBadRequest, i18n.T(ctx, "error.paper_required"))
		return
	}

	keyText, err := h.resolveText(r, "solution_key", "solution_key_text", "key_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if keyText == "" {
		writeError(w, http.StatusBadRequest, i18n.T(ctx, "error.key_required"))
		return
	}

	rep, err := h.pipe.Evaluate(ctx, pipeline.Submission{
		Pages:         pages,
		QuestionPaper: paperText,
		SolutionKey:   keyText,
	})
	switch {
	case errors.Is(err, pipeline.ErrEmptyTranscript):
		writeError(w, http.StatusUnprocessableEntity, i18n.T(ctx, "error.illegible"))
		return
	case errors.Is(err, pipeline.ErrNoQuestionPaper):
		writeError(w, http.StatusBadRequest, i18n.T(ctx, "error.paper_required"))
		return
	case err != nil:
		slog.Error("evaluation failed", "error", err)
		writeError(w, http.StatusInternalServerError, i18n.T(ctx, "error.evaluation_failed"))
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// resolveText resolves one textual input from, in priority order: an
// uploaded file (PDF text extracted), a plain form field, or a stored
// library row referenced by id.
func (h *Handler) resolveText(r *http.Request, fileField, textField, idField string) (string, error) {
	if f, _, err := r.FormFile(fileField); err == nil {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", errors.New("read " + fileField + ": " + err.Error())
		}
		return document.ExtractText(data)
	}

	if text := r.FormValue(textField); text != "" {
		return text, nil
	}

	if idStr := r.FormValue(idField); idStr != "" && h.store != nil {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return "", errors.New("invalid " + idField)
		}
		switch idField {
		case "paper_id":
			p, err := h.store.GetPaper(id)
			if err != nil {
				return "", errors.New("unknown paper_id")
			}
			return p.Body, nil
		case "key_id":
			k, err := h.store.GetKey(id)
			if err != nil {
				return "", errors.New("unknown key_id")
			}
			return k.Body, nil
		}
	}

	return "", nil
}

func (h *Handler) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := h.store.ListPapers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *Handler) handleSavePaper(w http.ResponseWriter, r *http.Request) {
	h.saveLibraryEntry(w, r, h.store.SavePaper)
}

func (h *Handler) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "paperID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper ID")
		return
	}
	p, err := h.store.GetPaper(id)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "error.not_found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListKeys()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	h.saveLibraryEntry(w, r, h.store.SaveKey)
}

func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key ID")
		return
	}
	k, err := h.store.GetKey(id)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "error.not_found"))
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// saveLibraryEntry stores a paper or key from a JSON body {name, body}
// or a multipart upload with a "file" part (PDF text extracted).
func (h *Handler) saveLibraryEntry(w http.ResponseWriter, r *http.Request, save func(name, body string) (int64, error)) {
	var name, body string

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		name = r.FormValue("name")
		if f, header, err := r.FormFile("file"); err == nil {
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
				return
			}
			body, err = document.ExtractText(data)
			if err != nil {
				writeError(w, http.StatusBadRequest, "extract text: "+err.Error())
				return
			}
			if name == "" {
				name = header.Filename
			}
		} else {
			body = r.FormValue("body")
		}
	} else {
		var req struct {
			Name string `json:"name"`
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		name, body = req.Name, req.Body
	}

	if body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	id, err := save(name, body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
