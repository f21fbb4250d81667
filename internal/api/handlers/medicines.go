package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/domain/medicine"
	"github.com/medihope/portal/internal/views"
)

// MedicineHandler serves the medicine catalogue
type MedicineHandler struct {
	app    *views.AppContext
	logger *zap.Logger
}

// NewMedicineHandler creates a new handler
func NewMedicineHandler(app *views.AppContext, logger *zap.Logger) *MedicineHandler {
	return &MedicineHandler{app: app, logger: logger}
}

// Routes returns the handler routes
func (h *MedicineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{key}", h.Get)
	return r
}

// List handles GET /medicines?email=&q=&status=
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := views.NewListedMed(h.app)
	page.Load(r.Context())

	writeJSON(w, http.StatusOK, page.Page(medicine.Criteria{
		Email:  q.Get("email"),
		Text:   q.Get("q"),
		Bucket: medicine.ParseBucket(q.Get("status")),
	}))
}

// Get handles GET /medicines/{key}
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	page := views.NewListedMed(h.app)
	page.Load(r.Context())

	detail, ok := page.Detail(key)
	if !ok {
		jsonError(w, "medicine not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
