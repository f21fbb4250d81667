package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/forms"
	"github.com/medihope/portal/internal/views"
)

// DonorHandler serves the donor profile page
type DonorHandler struct {
	app    *views.AppContext
	logger *zap.Logger
}

// NewDonorHandler creates a new handler
func NewDonorHandler(app *views.AppContext, logger *zap.Logger) *DonorHandler {
	return &DonorHandler{app: app, logger: logger}
}

// Routes returns the handler routes
func (h *DonorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{email}", h.Get)
	r.Post("/", h.Save)
	r.Put("/", h.Update)
	return r
}

// Get handles GET /donors/{email}
func (h *DonorHandler) Get(w http.ResponseWriter, r *http.Request) {
	page := views.NewDonorDetails(h.app, nil)
	if err := page.Form().Set("emailid", chi.URLParam(r, "email")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondAction(w, page.Fetch(r.Context()), page.Form())
}

// Save handles POST /donors
func (h *DonorHandler) Save(w http.ResponseWriter, r *http.Request) {
	page, ok := h.fromRequest(w, r)
	if !ok {
		return
	}
	respondAction(w, page.Save(r.Context()), nil)
}

// Update handles PUT /donors
func (h *DonorHandler) Update(w http.ResponseWriter, r *http.Request) {
	page, ok := h.fromRequest(w, r)
	if !ok {
		return
	}
	respondAction(w, page.Update(r.Context()), nil)
}

func (h *DonorHandler) fromRequest(w http.ResponseWriter, r *http.Request) (*views.DonorDetails, bool) {
	form, _, err := readSubmission(r, forms.DonorSchema, "")
	if err != nil {
		h.logger.Debug("invalid donor submission", zap.Error(err))
		jsonError(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return views.NewDonorDetails(h.app, form), true
}
