package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medihope/portal/internal/forms"
)

// DirtyRequest is the state a client sends to ask whether its form may
// be updated. Previews are keyed by file slot; Pending lists the slots
// holding a newly selected file.
type DirtyRequest struct {
	Current          forms.Fields      `json:"current"`
	Original         forms.Fields      `json:"original"`
	Previews         map[string]string `json:"previews"`
	OriginalPreviews map[string]string `json:"originalPreviews"`
	Pending          []string          `json:"pending"`
}

// FormHandler answers dirty checks for the registered schemas
type FormHandler struct{}

// NewFormHandler creates a new handler
func NewFormHandler() *FormHandler { return &FormHandler{} }

// Routes returns the handler routes
func (h *FormHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{kind}/dirty", h.Dirty)
	return r
}

// Dirty handles POST /forms/{kind}/dirty
func (h *FormHandler) Dirty(w http.ResponseWriter, r *http.Request) {
	schema, ok := forms.SchemaByName(chi.URLParam(r, "kind"))
	if !ok {
		jsonError(w, "unknown form", http.StatusNotFound)
		return
	}

	var req DirtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dirty, err := evaluateDirty(schema, req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dirty": dirty})
}

func evaluateDirty(schema forms.Schema, req DirtyRequest) (bool, error) {
	for _, m := range []forms.Fields{req.Current, req.Original} {
		for name := range m {
			if f, ok := schema.Lookup(name); !ok || f.Encoding != forms.EncText {
				return false, fmt.Errorf("%w: %s", forms.ErrUnknownField, name)
			}
		}
	}

	pending := make(map[string]bool, len(req.Pending))
	for _, slot := range req.Pending {
		if f, ok := schema.Lookup(slot); !ok || f.Encoding != forms.EncFile {
			return false, fmt.Errorf("%w: %s", forms.ErrNotFileSlot, slot)
		}
		pending[slot] = true
	}

	// An original left out of the request is the blank record.
	original := req.Original
	if original == nil {
		original = schema.Empty()
	}

	slots := schema.FileSlots()
	cur := make([]string, len(slots))
	orig := make([]string, len(slots))
	files := make([]*forms.File, len(slots))
	for i, slot := range slots {
		cur[i] = req.Previews[slot]
		orig[i] = req.OriginalPreviews[slot]
		if pending[slot] {
			files[i] = &forms.File{Name: slot}
		}
	}
	return forms.IsDirty(req.Current, original, cur, orig, files), nil
}
