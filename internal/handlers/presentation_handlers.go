package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"collabdeck/internal/models"
	"collabdeck/internal/services"
)

// PresentationHandler handles the REST catalog: listing and creating
// presentations and toggling presenting mode
type PresentationHandler struct {
	users  *services.UserService
	slides *services.SlideService
}

// NewPresentationHandler creates a new presentation handler
func NewPresentationHandler(users *services.UserService, slides *services.SlideService) *PresentationHandler {
	return &PresentationHandler{
		users:  users,
		slides: slides,
	}
}

// CreatePresentationRequest represents a request to create a presentation
type CreatePresentationRequest struct {
	Title string `json:"title"`
}

// CreatePresentationResponse represents the response
type CreatePresentationResponse struct {
	ID int `json:"id"`
}

// ChangeModeStatusRequest represents a presenting-mode toggle request
type ChangeModeStatusRequest struct {
	PresentationID int  `json:"presentationId"`
	IsEnable       bool `json:"isEnable"`
}

// CheckStatusModeRequest represents a presenting-mode access check
type CheckStatusModeRequest struct {
	PresentationID int    `json:"presentationId"`
	Username       string `json:"username"`
}

// ListPresentations returns the catalog rows
// GET /presentations?username=...
func (h *PresentationHandler) ListPresentations(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	summaries, err := h.users.ListPresentations(username)
	if err != nil {
		log.Printf("Failed to list presentations: %v", err)
		http.Error(w, "failed to list presentations", http.StatusInternalServerError)
		return
	}

	// Always return an array, even if empty
	if summaries == nil {
		summaries = []*models.PresentationSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// CreatePresentation creates a presentation owned by the claimed user.
// The username travels in the Authorization header as a bare trust-on-claim
// string.
// POST /presentations
func (h *PresentationHandler) CreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req CreatePresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	username := r.Header.Get("Authorization")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	presentation, err := h.users.CreatePresentation(req.Title, username)
	if err != nil {
		log.Printf("Failed to create presentation: %v", err)
		http.Error(w, "failed to create presentation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreatePresentationResponse{ID: presentation.ID})
}

// GetSlides returns the slide contents of a presentation in sequence order
// GET /presentations/{presentationId}/slides
func (h *PresentationHandler) GetSlides(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	presID, err := strconv.Atoi(vars["presentationId"])
	if err != nil || presID <= 0 {
		http.Error(w, "invalid presentation id", http.StatusBadRequest)
		return
	}

	slides, err := h.slides.ListSlides(presID)
	if err != nil {
		log.Printf("Failed to list slides: %v", err)
		http.Error(w, "failed to list slides", http.StatusInternalServerError)
		return
	}
	if len(slides) == 0 {
		http.Error(w, "presentation not found", http.StatusNotFound)
		return
	}

	contents := make([]string, 0, len(slides))
	for _, slide := range slides {
		contents = append(contents, slide.Content)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contents)
}

// ChangeModeStatus toggles the durable presenting-mode flag; owner only
// POST /presentation/modeStatus
func (h *PresentationHandler) ChangeModeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeModeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	username := r.Header.Get("Authorization")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	err := h.users.SetPresentingMode(req.PresentationID, username, req.IsEnable)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CheckStatusMode verifies that the presentation is in presenting mode and
// the user owns it, at the moment of the call
// POST /presentation/modeStatus/check
func (h *PresentationHandler) CheckStatusMode(w http.ResponseWriter, r *http.Request) {
	var req CheckStatusModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.users.CheckPresentAccess(req.PresentationID, req.Username); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// writeServiceError maps service errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf("Request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
