// Package handlers provides HTTP handlers for the portal API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medihope/portal/internal/forms"
	"github.com/medihope/portal/internal/views"
)

// maxUploadBytes bounds a multipart submission and each file in it.
const maxUploadBytes = 10 << 20

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// formView is the JSON shape of an editable form.
type formView struct {
	Values    forms.Fields      `json:"values"`
	Previews  map[string]string `json:"previews"`
	CanUpdate bool              `json:"canUpdate"`
}

func newFormView(f *forms.Form) formView {
	previews := make(map[string]string)
	for _, slot := range f.Schema().FileSlots() {
		if p := f.Preview(slot); p != "" {
			previews[slot] = p
		}
	}
	return formView{Values: f.Values(), Previews: previews, CanUpdate: f.Dirty()}
}

// actionResponse pairs an outcome with the form it acted on.
type actionResponse struct {
	views.Outcome
	Form *formView `json:"form,omitempty"`
}

// outcomeStatus maps an outcome to an HTTP status. Advisories are
// answered with 422 so clients can tell them from transport errors.
func outcomeStatus(o views.Outcome) int {
	if o.OK {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func respondAction(w http.ResponseWriter, o views.Outcome, f *forms.Form) {
	resp := actionResponse{Outcome: o}
	if f != nil {
		fv := newFormView(f)
		resp.Form = &fv
	}
	writeJSON(w, outcomeStatus(o), resp)
}

var errNoFile = errors.New("no file uploaded")

// readSubmission parses a multipart body against schema. The named
// exclude slot, if any, is returned separately instead of being staged.
func readSubmission(r *http.Request, schema forms.Schema, exclude string) (*forms.Form, *forms.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, err
	}
	defer r.MultipartForm.RemoveAll()

	values, urls, files, err := schema.Decode(r.MultipartForm, maxUploadBytes)
	if err != nil {
		return nil, nil, err
	}

	var excluded *forms.File
	if exclude != "" {
		excluded = files[exclude]
		delete(files, exclude)
		if excluded == nil {
			return nil, nil, errNoFile
		}
	}

	form, err := forms.FromSubmission(schema, values, urls, files)
	if err != nil {
		return nil, nil, err
	}
	return form, excluded, nil
}
