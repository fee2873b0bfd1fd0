package handlers

import (
	"net/http"

	"github.com/annoview/annoview/internal/session"
	"github.com/gorilla/mux"
)

// StatsHandler exposes pixel/time statistics and the aggregated dashboard.
type StatsHandler struct {
	session *session.Session
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(sess *session.Session) *StatsHandler {
	return &StatsHandler{session: sess}
}

// RegisterRoutes registers stats routes on the given router.
func (h *StatsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
}

// GetStats returns per-class pixel areas for the current image and across
// all dimension-probed images, plus project time totals.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Stats())
}

// GetDashboard returns the deduplicated summary, remaining-work projection
// and daily activity derived from the save history.
func (h *StatsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Dashboard())
}
