package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/annotation"
	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/session"
	"github.com/gorilla/mux"
)

// AnnotationHandler exposes the current image's polygon annotations.
type AnnotationHandler struct {
	session *session.Session
	logger  *zap.Logger
}

// NewAnnotationHandler creates an annotation handler.
func NewAnnotationHandler(sess *session.Session, logger *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{session: sess, logger: logger}
}

// RegisterRoutes registers annotation routes on the given router.
// The router should already carry the /annotations prefix.
func (h *AnnotationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListAnnotations).Methods("GET")
	r.HandleFunc("", h.CreateAnnotation).Methods("POST")
	r.HandleFunc("/{id}", h.DeleteAnnotation).Methods("DELETE")
	r.HandleFunc("/{id}/select", h.SelectAnnotation).Methods("POST")
}

// ListAnnotations returns the current image's annotation sequence in
// z-order.
func (h *AnnotationHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.CurrentAnnotations())
}

// CreateAnnotationRequest adds a polygon from a finished drag gesture.
type CreateAnnotationRequest struct {
	Points    []models.Point `json:"points"`
	ClassName string         `json:"className,omitempty"`
}

// CreateAnnotation appends a polygon to the current image. Gestures with
// fewer than 2 points are discarded without an error, mirroring the
// engine's contract.
func (h *AnnotationHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnotationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ann, err := h.session.AddAnnotation(req.Points, req.ClassName)
	if err != nil {
		if errors.Is(err, annotation.ErrNoClassSelected) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "no annotation class selected")
			return
		}
		if errors.Is(err, session.ErrNoProject) {
			respondJSONError(w, http.StatusConflict, "Conflict", "No project loaded")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to add annotation")
		return
	}
	if ann == nil {
		respondJSON(w, http.StatusOK, map[string]any{"discarded": true})
		return
	}
	respondJSON(w, http.StatusCreated, ann)
}

// DeleteAnnotation removes an annotation by id; unknown ids are a no-op.
func (h *AnnotationHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.session.DeleteAnnotation(id)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// SelectAnnotation records the user's annotation selection.
func (h *AnnotationHandler) SelectAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.session.SelectAnnotationID(id)
	respondJSON(w, http.StatusOK, map[string]any{"selected": id})
}
