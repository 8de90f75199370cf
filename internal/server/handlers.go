package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/licitaradar/radar/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// handleSearch runs the pipeline synchronously through its fast stages
// and answers with the result. 202 signals that deferred artifact
// generation is still running; listeners follow it on the event stream.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params model.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeErrorCode(w, r, http.StatusBadRequest, model.ErrValidation, "", "invalid request body")
		return
	}
	if params.Sector == "" {
		s.writeErrorCode(w, r, http.StatusBadRequest, model.ErrValidation, "", "sector is required")
		return
	}

	result, err := s.deps.Orchestrator.Run(r.Context(), bearerToken(r), params)
	if err != nil {
		s.writeError(w, r, result.SessionID, err)
		return
	}

	status := http.StatusOK
	if result.LLMStatus == "processing" || result.ExcelStatus == "processing" || result.LiveFetchInFlight {
		status = http.StatusAccepted
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, ok := s.deps.Results.Get(id)
	if !ok {
		s.writeErrorCode(w, r, http.StatusNotFound, model.ErrValidation, id, "unknown or expired search")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

type feedbackRequest struct {
	SearchID string `json:"search_id"`
	ItemID   string `json:"item_id"`
	Verdict  string `json:"verdict"`
	Category string `json:"category,omitempty"`
}

// handleFeedback records a user verdict on one item. Informational
// only: it never feeds back into live classification.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	caps, err := s.deps.Billing.Authorize(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCode(w, r, http.StatusBadRequest, model.ErrValidation, "", "invalid request body")
		return
	}
	if req.SearchID == "" || req.ItemID == "" || req.Verdict == "" {
		s.writeErrorCode(w, r, http.StatusBadRequest, model.ErrValidation, req.SearchID, "search_id, item_id and verdict are required")
		return
	}

	fb := model.Feedback{
		UserID:    caps.UserID,
		SearchID:  req.SearchID,
		ItemID:    req.ItemID,
		Verdict:   req.Verdict,
		Category:  req.Category,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.UpsertFeedback(r.Context(), fb); err != nil {
		s.writeError(w, r, req.SearchID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
