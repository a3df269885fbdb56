package console

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

const configFieldPrefix = "config_"

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.api.ListSources(r.Context())
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	if sources == nil {
		sources = []*domain.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

// handleCreateSource builds the method config from the add-source form and
// registers the source. Malformed input is rejected before the API is called.
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	company := strings.TrimSpace(fields["company"])
	slug := strings.TrimSpace(fields["slug"])
	if slug == "" {
		slug = domain.Slugify(company)
	}
	method := domain.Method(strings.TrimSpace(fields["method"]))
	if method == "" {
		method = domain.MethodGitHubJSON
	}

	form := make(map[string]string)
	for k, v := range fields {
		if strings.HasPrefix(k, configFieldPrefix) {
			form[strings.TrimPrefix(k, configFieldPrefix)] = v
		}
	}

	config, err := domain.BuildSourceConfig(method, form)
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}

	active := true
	source, err := s.api.CreateSource(r.Context(), domain.SourceInput{
		Company: company,
		Slug:    slug,
		Method:  method,
		Config:  config,
		Active:  &active,
	})
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.api.DeleteSource(r.Context(), id); err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.api.Queue(r.Context())
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.Postmortem{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePublished(w http.ResponseWriter, r *http.Request) {
	entries, err := s.api.Published(r.Context())
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.Postmortem{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// CompanyCounts is the per-company line of the dashboard.
type CompanyCounts struct {
	Company   string `json:"company"`
	Published int    `json:"published"`
	Pending   int    `json:"pending"`
}

// Overview is the dashboard summary.
type Overview struct {
	Published int             `json:"published"`
	Pending   int             `json:"pending"`
	Companies int             `json:"companies"`
	ByCompany []CompanyCounts `json:"by_company"`
}

// handleOverview summarizes the review queue and the published listing.
// Published counts cover the listing the console shows, not the whole archive.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	pending, err := s.api.Queue(r.Context())
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	published, err := s.api.Published(r.Context())
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOverview(published, pending))
}

func buildOverview(published, pending []*domain.Postmortem) Overview {
	counts := make(map[string]*CompanyCounts)
	entry := func(company string) *CompanyCounts {
		c, ok := counts[company]
		if !ok {
			c = &CompanyCounts{Company: company}
			counts[company] = c
		}
		return c
	}
	for _, p := range published {
		entry(p.Company).Published++
	}
	for _, p := range pending {
		entry(p.Company).Pending++
	}

	byCompany := make([]CompanyCounts, 0, len(counts))
	for _, c := range counts {
		byCompany = append(byCompany, *c)
	}
	sort.Slice(byCompany, func(i, j int) bool {
		return strings.ToLower(byCompany[i].Company) < strings.ToLower(byCompany[j].Company)
	})

	return Overview{
		Published: len(published),
		Pending:   len(pending),
		Companies: len(byCompany),
		ByCompany: byCompany,
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	p, err := s.api.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, err := s.api.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePostmortem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.api.DeletePostmortem(r.Context(), id); err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleBulkPublish(w http.ResponseWriter, r *http.Request) {
	ids, ok := bulkIDs(w, r)
	if !ok {
		return
	}
	result, err := s.api.BulkPublish(r.Context(), ids)
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	ids, ok := bulkIDs(w, r)
	if !ok {
		return
	}
	result, err := s.api.BulkReject(r.Context(), ids)
	if err != nil {
		s.writeForwardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// bulkIDs reads {"ids": [...]} or repeated "ids" form values.
func bulkIDs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	if isJSON(r) {
		var req domain.BulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return nil, false
		}
		return req.IDs, true
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return nil, false
	}
	return r.PostForm["ids"], true
}

// formFields flattens a JSON object or an urlencoded/multipart form into
// single string values.
func formFields(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// writeForwardError reports a failed admin action. Client errors from the API
// keep their status; anything else becomes 502.
func (s *Server) writeForwardError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}

	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode >= 400 && ue.StatusCode < 500 {
		msg := ue.Message
		if msg == "" {
			msg = http.StatusText(ue.StatusCode)
		}
		writeError(w, ue.StatusCode, msg)
		return
	}

	s.logger.ErrorContext(r.Context(), "admin action failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadGateway, "upstream error")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
