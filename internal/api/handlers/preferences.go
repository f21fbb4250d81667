package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/preferences"
)

// PreferenceHandler reads and writes the theme preference
type PreferenceHandler struct {
	settings *preferences.Settings
	logger   *zap.Logger
}

// NewPreferenceHandler creates a new handler
func NewPreferenceHandler(settings *preferences.Settings, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{settings: settings, logger: logger}
}

// PreferencesResponse is the stored preference set
type PreferencesResponse struct {
	DarkMode bool `json:"darkMode"`
}

// Routes returns the handler routes
func (h *PreferenceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Put("/dark-mode", h.SetDarkMode)
	r.Post("/dark-mode/toggle", h.Toggle)
	return r
}

// Get handles GET /preferences
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PreferencesResponse{DarkMode: h.settings.DarkMode()})
}

// SetDarkMode handles PUT /preferences/dark-mode
func (h *PreferenceHandler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DarkMode *bool `json:"darkMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DarkMode == nil {
		jsonError(w, "darkMode is required", http.StatusBadRequest)
		return
	}
	if err := h.settings.SetDarkMode(r.Context(), *req.DarkMode); err != nil {
		h.logger.Error("failed to save preference", zap.Error(err))
		jsonError(w, "failed to save preference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{DarkMode: h.settings.DarkMode()})
}

// Toggle handles POST /preferences/dark-mode/toggle
func (h *PreferenceHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	v, err := h.settings.Toggle(r.Context())
	if err != nil {
		h.logger.Error("failed to save preference", zap.Error(err))
		jsonError(w, "failed to save preference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{DarkMode: v})
}
