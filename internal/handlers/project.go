package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/session"
	"github.com/annoview/annoview/internal/storage"
	"github.com/annoview/annoview/internal/validation"
	"github.com/gorilla/mux"
)

// ProjectHandler exposes directory load, navigation, save, completion and
// deletion for the single live session.
type ProjectHandler struct {
	session *session.Session
	store   storage.Store
	logger  *zap.Logger
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(sess *session.Session, store storage.Store, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{session: sess, store: store, logger: logger}
}

// RegisterRoutes registers project routes on the given router.
// The router should already carry the /project prefix.
func (h *ProjectHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetProject).Methods("GET")
	r.HandleFunc("/load", h.LoadDirectory).Methods("POST")
	r.HandleFunc("/navigate", h.Navigate).Methods("POST")
	r.HandleFunc("/save", h.Save).Methods("POST")
	r.HandleFunc("/complete", h.SetCompleted).Methods("POST")
	r.HandleFunc("/activity", h.Activity).Methods("POST")
	r.HandleFunc("/image", h.DeleteImage).Methods("DELETE")
}

// LoadDirectoryRequest asks the session to load a project directory.
type LoadDirectoryRequest struct {
	Path string `json:"path" validate:"required,min=1"`
}

// LoadDirectory hard-resets the session onto a new directory.
func (h *ProjectHandler) LoadDirectory(w http.ResponseWriter, r *http.Request) {
	var req LoadDirectoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "path is required")
		return
	}
	if err := h.session.LoadDirectory(r.Context(), req.Path); err != nil {
		h.logger.Error("directory_load_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load directory")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// GetProject returns the full session snapshot.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// NavigateRequest moves to an adjacent image or an absolute index.
type NavigateRequest struct {
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=next previous"`
	Index     *int   `json:"index,omitempty"`
}

// Navigate performs the silent-save-then-navigate sequence. Save failures
// are non-fatal; an out-of-range index is a validation error.
func (h *ProjectHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "direction must be next or previous")
		return
	}

	var (
		index int
		err   error
	)
	switch {
	case req.Index != nil:
		index, err = h.session.GoToIndex(r.Context(), *req.Index)
	case req.Direction == "next":
		index, err = h.session.Next(r.Context())
	case req.Direction == "previous":
		index, err = h.session.Previous(r.Context())
	default:
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "direction or index is required")
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrIndexOutOfRange) {
			status = http.StatusBadRequest
		} else if errors.Is(err, session.ErrNoProject) {
			status = http.StatusConflict
		}
		respondJSONError(w, status, http.StatusText(status), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"currentIndex": index})
}

// SaveRequest triggers a save of the current image.
type SaveRequest struct {
	Silent bool `json:"silent"`
}

// Save persists the current image's artifacts. The response reports overall
// success; silent mode only suppresses frontend notification.
func (h *ProjectHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.SaveAll(r.Context(), req.Silent); err != nil {
		if errors.Is(err, session.ErrNoProject) {
			respondJSONError(w, http.StatusConflict, "Conflict", "No project loaded")
			return
		}
		h.logger.Error("save_failed", zap.Error(err))
		respondJSON(w, http.StatusOK, map[string]any{"saved": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"saved": true})
}

// CompleteRequest toggles the current image's completion flag.
type CompleteRequest struct {
	Completed bool `json:"completed"`
}

// SetCompleted freezes or thaws the current image's timers.
func (h *ProjectHandler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.SetCompleted(req.Completed); err != nil {
		respondJSONError(w, http.StatusConflict, "Conflict", "No project loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"completed": req.Completed})
}

// ActivityRequest reports user input for the inactivity watchdog.
type ActivityRequest struct {
	Drawing *bool `json:"drawing,omitempty"`
}

// Activity re-arms the inactivity watchdog and optionally toggles the
// actively-drawing flag.
func (h *ProjectHandler) Activity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.session.Activity(req.Drawing)
	respondJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

// DeleteImage removes the current image and its artifacts. The frontend is
// responsible for user confirmation.
func (h *ProjectHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteCurrentImage(r.Context()); err != nil {
		if errors.Is(err, session.ErrNoProject) {
			respondJSONError(w, http.StatusConflict, "Conflict", "No project loaded")
			return
		}
		h.logger.Error("image_delete_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete image")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Thumbnail renders a bounded JPEG preview of the current image.
func (h *ProjectHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	img, ok := h.session.CurrentImage()
	if !ok {
		respondJSONError(w, http.StatusConflict, "Conflict", "No project loaded")
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("w"))
	height, _ := strconv.Atoi(r.URL.Query().Get("h"))
	data, err := storage.Thumbnail(h.store, img.Path, width, height)
	if err != nil {
		h.logger.Warn("thumbnail_failed", zap.String("image", img.Name), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to render thumbnail")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
