package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/forms"
	"github.com/medihope/portal/internal/views"
)

// NeedyHandler serves the needy dashboard and profile pages
type NeedyHandler struct {
	app    *views.AppContext
	logger *zap.Logger
}

// NewNeedyHandler creates a new handler
func NewNeedyHandler(app *views.AppContext, logger *zap.Logger) *NeedyHandler {
	return &NeedyHandler{app: app, logger: logger}
}

// Routes returns the handler routes
func (h *NeedyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dashboard", h.Dashboard)
	r.Post("/logout", h.Logout)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Save)
	r.Put("/", h.Update)
	r.Post("/ocr/front", h.OCRFront)
	r.Post("/ocr/back", h.OCRBack)
	return r
}

// Dashboard handles GET /needy/dashboard
func (h *NeedyHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.NewNeedyDashboard(h.app).Load(r.Context()))
}

// Logout handles POST /needy/logout
func (h *NeedyHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.NewNeedyDashboard(h.app).Logout())
}

// Get handles GET /needy/{id}. With ?by=email the path value is an email
// address instead of a record id.
func (h *NeedyHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	page := views.NewNeedyProfile(h.app, nil)

	var out views.Outcome
	if r.URL.Query().Get("by") == "email" {
		if err := page.Form().Set("email", key); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = page.FetchByEmail(r.Context())
	} else {
		out = page.LoadForEdit(r.Context(), key)
		if !out.OK && out.Message == "" {
			jsonError(w, "needy not found", http.StatusNotFound)
			return
		}
	}
	respondAction(w, out, page.Form())
}

// Save handles POST /needy
func (h *NeedyHandler) Save(w http.ResponseWriter, r *http.Request) {
	page, _, ok := h.fromRequest(w, r, "")
	if !ok {
		return
	}
	respondAction(w, page.Save(r.Context()), nil)
}

// Update handles PUT /needy
func (h *NeedyHandler) Update(w http.ResponseWriter, r *http.Request) {
	page, _, ok := h.fromRequest(w, r, "")
	if !ok {
		return
	}
	respondAction(w, page.Update(r.Context()), nil)
}

// OCRFront handles POST /needy/ocr/front. The body carries the form as
// edited so far plus the aadhaarFront file; the response is the form with
// the extracted fields filled in.
func (h *NeedyHandler) OCRFront(w http.ResponseWriter, r *http.Request) {
	page, file, ok := h.fromRequest(w, r, "aadhaarFront")
	if !ok {
		return
	}
	respondAction(w, page.UploadFront(r.Context(), file), page.Form())
}

// OCRBack handles POST /needy/ocr/back
func (h *NeedyHandler) OCRBack(w http.ResponseWriter, r *http.Request) {
	page, file, ok := h.fromRequest(w, r, "aadhaarBack")
	if !ok {
		return
	}
	respondAction(w, page.UploadBack(r.Context(), file), page.Form())
}

func (h *NeedyHandler) fromRequest(w http.ResponseWriter, r *http.Request, fileSlot string) (*views.NeedyProfile, *forms.File, bool) {
	form, file, err := readSubmission(r, forms.NeedySchema, fileSlot)
	if err != nil {
		h.logger.Debug("invalid needy submission", zap.Error(err))
		jsonError(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	return views.NewNeedyProfile(h.app, form), file, true
}
