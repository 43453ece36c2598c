package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/access"
	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/rodrigomiquilino/wwm-review/internal/corpus"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/internal/review"
)

type unitsResponse struct {
	Units      []corpus.TranslationUnit `json:"units"`
	Total      int                      `json:"total"`
	Translated int                      `json:"translated"`
	LoadedAt   time.Time                `json:"loaded_at"`
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	state := s.hub.Snapshot()
	status := r.URL.Query().Get("status")
	query := strings.ToLower(r.URL.Query().Get("q"))

	translated := 0
	filtered := make([]corpus.TranslationUnit, 0, len(state.Units))
	for _, u := range state.Units {
		if u.IsTranslated {
			translated++
		}
		switch status {
		case "translated":
			if !u.IsTranslated {
				continue
			}
		case "untranslated":
			if u.IsTranslated {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.SourceText), query) &&
			!strings.Contains(strings.ToLower(u.LocalizedText), query) &&
			!strings.Contains(strings.ToLower(u.ID), query) {
			continue
		}
		filtered = append(filtered, u)
	}

	writeJSON(w, http.StatusOK, unitsResponse{
		Units:      filtered,
		Total:      len(state.Units),
		Translated: translated,
		LoadedAt:   state.LoadedAt,
	})
}

func (s *Server) handleUnitSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// /api/units/{id}/duplicates or /api/units/{id}/terms
	path := strings.TrimPrefix(r.URL.Path, "/api/units/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	unit, ok := s.hub.Unit(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown unit id")
		return
	}

	switch parts[1] {
	case "duplicates":
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         unit.ID,
			"duplicates": s.hub.DuplicatesOf(unit.SourceText),
		})
	case "terms":
		writeJSON(w, http.StatusOK, map[string]any{
			"id":    unit.ID,
			"terms": s.hub.TermsFor(unit.SourceText),
		})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.hub.Snapshot().Glossary)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state := s.hub.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"mismatches": state.Mismatches,
		"loaded_at":  state.LoadedAt,
	})
}

type addSuggestionRequest struct {
	ID                string `json:"id"`
	Suggestion        string `json:"suggestion"`
	ApplyToDuplicates bool   `json:"apply_to_duplicates"`
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"entries": s.hub.Cart().Entries(),
			"count":   s.hub.Cart().Len(),
		})
	case http.MethodPost:
		var req addSuggestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		added, err := s.hub.AddSuggestion(cart.Entry{ID: req.ID, Suggestion: req.Suggestion}, req.ApplyToDuplicates)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"added": added,
			"count": s.hub.Cart().Len(),
		})
	case http.MethodDelete:
		s.hub.Cart().Clear()
		writeJSON(w, http.StatusOK, map[string]any{"count": 0})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCartEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/cart/"), "/")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry id")
		return
	}
	if !s.hub.Cart().Remove(id) {
		writeError(w, http.StatusNotFound, "no cart entry for id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": s.hub.Cart().Len()})
}

type submitRequest struct {
	SkipConflicting      bool `json:"skip_conflicting"`
	AcknowledgeConflicts bool `json:"acknowledge_conflicts"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req submitRequest
	if r.Body != nil {
		// An empty body means default options.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	issue, err := s.submitter.Submit(r.Context(), review.SubmitOptions{
		SkipConflicting:      req.SkipConflicting,
		AcknowledgeConflicts: req.AcknowledgeConflicts,
	})
	if err != nil {
		var conflict *review.DuplicateConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":     "entries already pending review",
				"conflicts": conflict.IDs,
			})
			return
		}
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"number": issue.Number,
		"url":    issue.HTMLURL,
		"title":  issue.Title,
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ids, err := s.submitter.PendingIDs(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.hub.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"units":     len(s.hub.Snapshot().Units),
		"loaded_at": s.hub.Snapshot().LoadedAt,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.adminEnabled() {
		writeError(w, http.StatusNotImplemented, "admin access is not configured")
		return
	}
	user, err := s.gate.Authorize(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.adminEnabled() {
		writeError(w, http.StatusNotImplemented, "admin access is not configured")
		return
	}
	issues, err := s.adjudicator.OpenRequests(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleAdminApplied(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.adminEnabled() {
		writeError(w, http.StatusNotImplemented, "admin access is not configured")
		return
	}
	issues, err := s.adjudicator.AppliedRequests(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

type approveRequest struct {
	Decisions []review.Decision `json:"decisions"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleAdminRequestAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.adminEnabled() {
		writeError(w, http.StatusNotImplemented, "admin access is not configured")
		return
	}

	// /api/admin/requests/{number}/approve or .../reject
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/requests/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	number, err := strconv.Atoi(parts[0])
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}

	switch parts[1] {
	case "approve":
		var req approveRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		result, err := s.adjudicator.Approve(r.Context(), number, req.Decisions)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "reject":
		var req rejectRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if err := s.adjudicator.Reject(r.Context(), number, req.Reason); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"number": number, "state": "closed"})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, access.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, review.ErrAllRejected):
		return http.StatusConflict
	case errors.Is(err, review.ErrNoPayload), errors.Is(err, review.ErrAmbiguousPayload):
		return http.StatusUnprocessableEntity
	case github.IsAuthError(unwrap(err)):
		return http.StatusUnauthorized
	case github.IsPermissionError(unwrap(err)):
		return http.StatusForbidden
	case github.IsRateLimited(unwrap(err)):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// unwrap digs out an APIError so the helpers in the github package can
// classify it.
func unwrap(err error) error {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
