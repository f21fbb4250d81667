package views

import (
	"context"

	"github.com/medihope/portal/internal/domain/donor"
	"github.com/medihope/portal/internal/events"
	"github.com/medihope/portal/internal/forms"
)

// DonorDetails is the donor registration and profile page.
type DonorDetails struct {
	app  *AppContext
	form *forms.Form
}

// NewDonorDetails returns the page around form, or a blank form when nil.
func NewDonorDetails(app *AppContext, form *forms.Form) *DonorDetails {
	if form == nil {
		form = forms.NewForm(forms.DonorSchema)
	}
	return &DonorDetails{app: app, form: form}
}

// Form returns the page's form
func (d *DonorDetails) Form() *forms.Form { return d.form }

// DonorFields flattens a donor record into form values and previews.
func DonorFields(r *donor.Record) (forms.Fields, map[string]string) {
	return forms.Fields{
			"emailid":       r.EmailID,
			"name":          r.Name,
			"age":           r.Age,
			"gender":        r.Gender,
			"curcity":       r.CurCity,
			"curaddress":    r.CurAddress,
			"qualification": r.Qualification,
			"occupation":    r.Occupation,
			"contact":       r.Contact,
		}, map[string]string{
			"adhaarpic":  r.AadhaarPic,
			"profilepic": r.ProfilePic,
		}
}

// Fetch loads the profile registered under the form's email.
func (d *DonorDetails) Fetch(ctx context.Context) Outcome {
	email := d.form.Get("emailid")
	if email == "" {
		return advise("Please enter email first")
	}

	rec, msg, err := d.app.Backend.FetchDonor(ctx, email)
	if err != nil {
		return advise("Error fetching data: " + err.Error())
	}
	if rec == nil {
		if msg == "" {
			msg = "No existing data found for this email"
		}
		return advise(msg)
	}
	d.form.Load(DonorFields(rec))
	return Outcome{OK: true, Message: "Data loaded successfully!"}
}

// SelectAadhaar stages the Aadhaar image and returns its preview.
func (d *DonorDetails) SelectAadhaar(file *forms.File) (string, error) {
	return d.form.SelectFile("adhaarpic", file)
}

// SelectProfile stages the profile picture and returns its preview.
func (d *DonorDetails) SelectProfile(file *forms.File) (string, error) {
	return d.form.SelectFile("profilepic", file)
}

// Save registers the donor. Email and name are required.
func (d *DonorDetails) Save(ctx context.Context) Outcome {
	if d.form.Get("emailid") == "" || d.form.Get("name") == "" {
		return advise("Please fill in email and name fields")
	}
	return d.app.submit(ctx, d.form, d.app.Backend.SaveDonor,
		events.KindDonorSaved, d.form.Get("emailid"), RedirectDonorDashboard, "Error saving data: ")
}

// Update writes the edited profile.
func (d *DonorDetails) Update(ctx context.Context) Outcome {
	return d.app.submit(ctx, d.form, d.app.Backend.UpdateDonor,
		events.KindDonorUpdated, d.form.Get("emailid"), RedirectDonorDashboard, "Error updating data: ")
}

// CanUpdate reports whether the update action is enabled.
func (d *DonorDetails) CanUpdate() bool { return d.form.Dirty() }
