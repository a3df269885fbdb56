package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// DeletedResponse confirms a deletion
// @Description Deleted resource id
type DeletedResponse struct {
	Deleted string `json:"deleted" example:"acme-3f2a9c1b0d4e"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database and, when configured, the lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "database not ready", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.lock != nil {
		if err := s.lock.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "lock backend not ready", "error", err)
			writeError(w, http.StatusServiceUnavailable, "lock backend unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Public catalogue

// handleListPostmortems godoc
// @Summary      List published postmortems
// @Tags         Postmortems
// @Produce      json
// @Param        company   query     string  false  "Company name"
// @Param        severity  query     string  false  "critical, high, medium or low"
// @Param        sort_by   query     string  false  "published_at, company or created_at"
// @Param        sort_dir  query     string  false  "asc or desc"
// @Param        limit     query     int     false  "Page size (max 100)"
// @Param        offset    query     int     false  "Offset"
// @Success      200  {object}  domain.PostmortemPage
// @Failure      400  {object}  ErrorResponse
// @Router       /postmortems [get]
func (s *Server) handleListPostmortems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PostmortemFilter{
		Company:  strings.TrimSpace(q.Get("company")),
		Severity: domain.Severity(strings.ToLower(q.Get("severity"))),
		SortBy:   domain.SortField(q.Get("sort_by")),
		SortDesc: !strings.EqualFold(q.Get("sort_dir"), "asc"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	page, err := s.postmortemService.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetPostmortem godoc
// @Summary      Get a published postmortem
// @Tags         Postmortems
// @Produce      json
// @Param        id   path      string  true  "Postmortem ID"
// @Success      200  {object}  domain.Postmortem
// @Failure      404  {object}  ErrorResponse
// @Router       /postmortems/{id} [get]
func (s *Server) handleGetPostmortem(w http.ResponseWriter, r *http.Request) {
	p, err := s.postmortemService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleListCompanies godoc
// @Summary      List companies with published postmortems
// @Tags         Postmortems
// @Produce      json
// @Success      200  {array}  string
// @Router       /companies [get]
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.postmortemService.Companies(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

// Source endpoints

// handleListSources godoc
// @Summary      List sources
// @Tags         Sources
// @Produce      json
// @Security     AdminSecret
// @Success      200  {array}   domain.Source
// @Failure      401  {object}  ErrorResponse
// @Router       /admin/sources [get]
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sourceService.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if sources == nil {
		sources = []*domain.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

// handleCreateSource godoc
// @Summary      Register a source
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Security     AdminSecret
// @Param        request  body      domain.SourceInput  true  "Source"
// @Success      201      {object}  domain.Source
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Slug already taken"
// @Router       /admin/sources [post]
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req domain.SourceInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := s.sourceService.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

// handleGetSource godoc
// @Summary      Get a source
// @Tags         Sources
// @Produce      json
// @Security     AdminSecret
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  domain.Source
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/sources/{id} [get]
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := s.sourceService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// handleUpdateSource godoc
// @Summary      Update a source
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Security     AdminSecret
// @Param        id       path      string               true  "Source ID"
// @Param        request  body      domain.SourceUpdate  true  "Fields to change"
// @Success      200      {object}  domain.Source
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /admin/sources/{id} [patch]
func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var req domain.SourceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := s.sourceService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// handleDeleteSource godoc
// @Summary      Delete a source
// @Description  Collected postmortems are kept
// @Tags         Sources
// @Produce      json
// @Security     AdminSecret
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  DeletedResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/sources/{id} [delete]
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sourceService.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: id})
}

// Moderation endpoints

// handleQueue godoc
// @Summary      List pending postmortems
// @Tags         Moderation
// @Produce      json
// @Security     AdminSecret
// @Success      200  {array}  domain.Postmortem
// @Router       /admin/queue [get]
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.moderationService.Queue(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.Postmortem{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handlePublish godoc
// @Summary      Publish a pending postmortem
// @Tags         Moderation
// @Produce      json
// @Security     AdminSecret
// @Param        id   path      string  true  "Postmortem ID"
// @Success      200  {object}  domain.Postmortem
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Entry was rejected"
// @Router       /admin/{id}/publish [patch]
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	p, err := s.moderationService.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleReject godoc
// @Summary      Reject a pending postmortem
// @Tags         Moderation
// @Produce      json
// @Security     AdminSecret
// @Param        id   path      string  true  "Postmortem ID"
// @Success      200  {object}  domain.Postmortem
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Entry was published"
// @Router       /admin/{id}/reject [patch]
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, err := s.moderationService.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeletePostmortem godoc
// @Summary      Delete a postmortem
// @Tags         Moderation
// @Produce      json
// @Security     AdminSecret
// @Param        id   path      string  true  "Postmortem ID"
// @Success      200  {object}  DeletedResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/{id} [delete]
func (s *Server) handleDeletePostmortem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.moderationService.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: id})
}

// handleBulkPublish godoc
// @Summary      Publish several postmortems
// @Description  Best effort: each id is processed independently
// @Tags         Moderation
// @Accept       json
// @Produce      json
// @Security     AdminSecret
// @Param        request  body      domain.BulkRequest  true  "IDs"
// @Success      200      {object}  domain.BulkResult
// @Failure      400      {object}  ErrorResponse
// @Router       /admin/bulk-publish [post]
func (s *Server) handleBulkPublish(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulk(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.moderationService.BulkPublish(r.Context(), req.IDs))
}

// handleBulkReject godoc
// @Summary      Reject several postmortems
// @Description  Best effort: each id is processed independently
// @Tags         Moderation
// @Accept       json
// @Produce      json
// @Security     AdminSecret
// @Param        request  body      domain.BulkRequest  true  "IDs"
// @Success      200      {object}  domain.BulkResult
// @Failure      400      {object}  ErrorResponse
// @Router       /admin/bulk-reject [post]
func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulk(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.moderationService.BulkReject(r.Context(), req.IDs))
}

func decodeBulk(w http.ResponseWriter, r *http.Request) (domain.BulkRequest, bool) {
	var req domain.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// Helper functions

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// writeServiceError maps domain errors to HTTP statuses
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Conflict:
		writeError(w, http.StatusConflict, ve.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
