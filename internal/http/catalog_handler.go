package http

import (
	"net/http"
	"strings"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/preferences"
)

type SearchResponseDTO struct {
	Query       string                    `json:"query"`
	Suggestions []domain.SearchSuggestion `json:"suggestions"`
}

type SearchHistoryDTO struct {
	History []string `json:"history"`
}

func (s *Server) preferences(r *http.Request) *preferences.Preferences {
	return preferences.New(s.store, currentSession(r).ID, s.log)
}

// GET /api/locations
func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.api.ListLocations(upstreamContext(r))
	if err != nil {
		s.log.WarnContext(r.Context(), "failed to list locations", "error", err)
		respondError(w, http.StatusBadGateway, "upstream_error", "locations are unavailable")
		return
	}
	if locations == nil {
		locations = []domain.Location{}
	}
	respondJSON(w, http.StatusOK, locations)
}

// GET /api/preferences/area
func (s *Server) getSelectedArea(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.preferences(r).SelectedArea(r.Context()))
}

// PUT /api/preferences/area
func (s *Server) putSelectedArea(w http.ResponseWriter, r *http.Request) {
	var area domain.SelectedArea
	if err := decodeJSON(r, &area); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if area.LocationID == "" {
		respondError(w, http.StatusBadRequest, "invalid_location", "locationId is required")
		return
	}
	if err := s.preferences(r).SetSelectedArea(r.Context(), area); err != nil {
		s.log.ErrorContext(r.Context(), "failed to save area", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save area")
		return
	}
	respondJSON(w, http.StatusOK, area)
}

// GET /api/preferences/plan
func (s *Server) getSelectedPlan(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.preferences(r).SelectedPlan(r.Context()))
}

// PUT /api/preferences/plan
func (s *Server) putSelectedPlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.SelectedPlan
	if err := decodeJSON(r, &plan); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if plan.PackageID == "" {
		respondError(w, http.StatusBadRequest, "invalid_plan", "packageId is required")
		return
	}
	if err := s.preferences(r).SetSelectedPlan(r.Context(), plan); err != nil {
		s.log.ErrorContext(r.Context(), "failed to save plan", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save plan")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// GET /api/search/suggestions?q=
func (s *Server) searchSuggestions(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	resp := SearchResponseDTO{Query: q, Suggestions: []domain.SearchSuggestion{}}
	if q == "" {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.preferences(r).RecordSearch(r.Context(), q); err != nil {
		s.log.WarnContext(r.Context(), "failed to record search", "error", err)
	}

	suggestions, err := s.api.SearchSuggestions(upstreamContext(r), q)
	if err != nil {
		s.log.WarnContext(r.Context(), "failed to fetch suggestions", "error", err)
	} else if suggestions != nil {
		resp.Suggestions = suggestions
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/search/history
func (s *Server) getSearchHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SearchHistoryDTO{History: s.preferences(r).SearchHistory(r.Context())})
}

// DELETE /api/search/history
func (s *Server) clearSearchHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.preferences(r).ClearSearchHistory(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "failed to clear search history", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
