package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/history"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *history.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *history.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List sync runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	RunListResponse
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	runs, total, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(codeInternal, "internal error", ""))
		return
	}
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	writeJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  min(limit, history.MaxLimit),
		Offset: max(offset, 0),
	})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one sync run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{object}	models.SyncRun
//	@Failure		404	{object}	errResponse
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.writeError(w, "get run failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListMatches handles GET /api/runs/{id}/matches.
//
//	@Summary		List a run's match records
//	@Tags			runs
//	@Produce		json
//	@Param			id		path		string	true	"Run id"
//	@Param			action	query		string	false	"Filter by action"	Enums(enrich, redundant, tangential, orphaned, new_doc)
//	@Success		200		{object}	MatchListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/runs/{id}/matches [get]
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recs, err := h.svc.ListMatches(r.Context(), id, r.URL.Query().Get("action"))
	if err != nil {
		h.writeError(w, "list matches failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchListResponse{RunID: id, Matches: recs})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List cached documents
//	@Tags			documents
//	@Produce		json
//	@Param			module	query		string	false	"Filter by module"
//	@Success		200		{object}	DocumentListResponse
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := h.svc.ListDocuments(r.Context(), r.URL.Query().Get("module"))
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

func (h *Handler) writeError(w http.ResponseWriter, msg, id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(codeNotFound, "run not found", id))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidInput, err.Error(), id))
	default:
		h.logger.Error(msg, slog.String("run_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(codeInternal, "internal error", id))
	}
}
