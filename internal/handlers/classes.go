package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/annotation"
	"github.com/annoview/annoview/internal/session"
	"github.com/annoview/annoview/internal/validation"
	"github.com/gorilla/mux"
)

// ClassHandler exposes the annotation class set.
type ClassHandler struct {
	session *session.Session
	logger  *zap.Logger
}

// NewClassHandler creates a class handler.
func NewClassHandler(sess *session.Session, logger *zap.Logger) *ClassHandler {
	return &ClassHandler{session: sess, logger: logger}
}

// RegisterRoutes registers class routes on the given router.
// The router should already carry the /classes prefix.
func (h *ClassHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListClasses).Methods("GET")
	r.HandleFunc("", h.CreateClass).Methods("POST")
	r.HandleFunc("/select", h.SelectClass).Methods("POST")
	r.HandleFunc("/{name}/color", h.UpdateColor).Methods("PATCH")
}

// CreateClassRequest registers a new class.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,classname"`
	ID   int    `json:"id" validate:"required,min=1,max=255"`
}

// ListClasses returns the class list and the selected class.
func (h *ClassHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, selected := h.session.Classes()
	respondJSON(w, http.StatusOK, map[string]any{
		"classes":       classes,
		"selectedClass": selected,
	})
}

// CreateClass registers a new class; duplicate names or ids are rejected
// and leave the class list unchanged.
func (h *ClassHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "name and id (1-255) are required")
		return
	}
	class, err := h.session.AddClass(req.Name, req.ID)
	if err != nil {
		if errors.Is(err, annotation.ErrDuplicateClass) {
			respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	h.logger.Info("class_created",
		zap.String("name", class.Name),
		zap.Int("id", class.ID),
	)
	respondJSON(w, http.StatusCreated, class)
}

// SelectClassRequest sets the active class.
type SelectClassRequest struct {
	Name string `json:"name" validate:"required"`
}

// SelectClass sets the active class. Unknown names are accepted; they just
// match nothing visually.
func (h *ClassHandler) SelectClass(w http.ResponseWriter, r *http.Request) {
	var req SelectClassRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "name is required")
		return
	}
	h.session.SelectClass(req.Name)
	respondJSON(w, http.StatusOK, map[string]any{"selectedClass": req.Name})
}

// UpdateColorRequest replaces a class color.
type UpdateColorRequest struct {
	Color string `json:"color" validate:"required,min=1"`
}

// UpdateColor replaces the color of the named class. Unknown classes are a
// silent no-op, matching the engine's semantics.
func (h *ClassHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	var req UpdateColorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "color is required")
		return
	}
	name := mux.Vars(r)["name"]
	h.session.UpdateClassColor(name, req.Color)
	respondJSON(w, http.StatusOK, map[string]any{"name": name, "color": req.Color})
}
