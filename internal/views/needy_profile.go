package views

import (
	"context"

	"go.uber.org/zap"

	"github.com/medihope/portal/internal/domain/needy"
	"github.com/medihope/portal/internal/events"
	"github.com/medihope/portal/internal/forms"
)

// NeedyProfile is the needy registration and edit page.
type NeedyProfile struct {
	app  *AppContext
	form *forms.Form
}

// NewNeedyProfile returns the page around form, or a blank form when nil.
func NewNeedyProfile(app *AppContext, form *forms.Form) *NeedyProfile {
	if form == nil {
		form = forms.NewForm(forms.NeedySchema)
	}
	return &NeedyProfile{app: app, form: form}
}

// Form returns the page's form
func (p *NeedyProfile) Form() *forms.Form { return p.form }

func (p *NeedyProfile) load(r *needy.Record) {
	p.form.Load(forms.Fields{
		"email":   r.Email,
		"contact": r.Contact,
		"name":    r.Name,
		"dob":     r.DOB,
		"gender":  r.Gender,
		"address": r.Address,
	}, map[string]string{
		"aadhaarFront": r.AadhaarFrontURL,
		"aadhaarBack":  r.AadhaarBackURL,
	})
}

// LoadForEdit loads the profile with the given id for editing.
func (p *NeedyProfile) LoadForEdit(ctx context.Context, id string) Outcome {
	rec, _, err := p.app.Backend.FetchNeedy(ctx, id)
	if err != nil {
		p.app.logger().Warn("loading needy for edit failed",
			zap.String("id", id),
			zap.Error(err))
		return advise("Error loading data for editing")
	}
	if rec == nil {
		return Outcome{}
	}
	p.load(rec)
	return Outcome{OK: true}
}

// FetchByEmail loads the profile registered under the form's email.
func (p *NeedyProfile) FetchByEmail(ctx context.Context) Outcome {
	rec, _, err := p.app.Backend.FetchNeedy(ctx, p.form.Get("email"))
	if err != nil {
		return advise("Error: " + err.Error())
	}
	if rec == nil {
		return advise("Needy not found")
	}
	p.load(rec)
	return Outcome{OK: true}
}

// UploadFront stages the card front and fills name, date of birth and
// gender from OCR. When OCR fails those fields keep their values.
func (p *NeedyProfile) UploadFront(ctx context.Context, file *forms.File) Outcome {
	if _, err := p.form.SelectFile("aadhaarFront", file); err != nil {
		return advise(err.Error())
	}

	res, msg, err := p.app.Backend.ExtractAadhaarFront(ctx, file)
	switch {
	case err != nil:
		p.app.Metrics.ObserveOCR("front", "error")
		return advise("Error during OCR: " + err.Error())
	case res == nil:
		p.app.Metrics.ObserveOCR("front", "rejected")
		return advise("OCR failed to extract data: " + msg)
	}

	p.app.Metrics.ObserveOCR("front", "ok")
	_ = p.form.Set("name", res.Name)
	_ = p.form.Set("dob", res.DOB)
	_ = p.form.Set("gender", res.Gender)
	return Outcome{OK: true, Message: "Aadhaar data extracted successfully!"}
}

// UploadBack stages the card back and fills the address from OCR. When
// OCR fails the address is cleared for manual entry.
func (p *NeedyProfile) UploadBack(ctx context.Context, file *forms.File) Outcome {
	if file == nil {
		return Outcome{}
	}
	if _, err := p.form.SelectFile("aadhaarBack", file); err != nil {
		return advise(err.Error())
	}

	address, ok, _, err := p.app.Backend.ExtractAadhaarBack(ctx, file)
	switch {
	case err != nil:
		p.app.Metrics.ObserveOCR("back", "error")
		_ = p.form.Set("address", "")
		return advise("Error processing image. Please try again or enter manually.")
	case !ok:
		p.app.Metrics.ObserveOCR("back", "rejected")
		_ = p.form.Set("address", "")
		return advise("Address extraction failed. Please enter the address manually.")
	}

	p.app.Metrics.ObserveOCR("back", "ok")
	_ = p.form.Set("address", address)
	return Outcome{OK: true}
}

// Save registers the profile.
func (p *NeedyProfile) Save(ctx context.Context) Outcome {
	return p.app.submit(ctx, p.form, p.app.Backend.SaveNeedy,
		events.KindNeedySaved, p.form.Get("email"), RedirectNeedyDashboard, "Error saving data: ")
}

// Update writes the edited profile.
func (p *NeedyProfile) Update(ctx context.Context) Outcome {
	return p.app.submit(ctx, p.form, p.app.Backend.UpdateNeedy,
		events.KindNeedyUpdated, p.form.Get("email"), RedirectNeedyDashboard, "Error updating data: ")
}

// CanUpdate reports whether the update action is enabled.
func (p *NeedyProfile) CanUpdate() bool { return p.form.Dirty() }
