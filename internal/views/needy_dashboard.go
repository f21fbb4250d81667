package views

import (
	"context"

	"github.com/medihope/portal/internal/domain/medicine"
	"github.com/medihope/portal/internal/domain/needy"
)

// dashboardMedicines is how many medicines the needy dashboard previews.
const dashboardMedicines = 6

// NeedyDashboardData is what the needy dashboard renders
type NeedyDashboardData struct {
	Needy          []needy.Record  `json:"needy"`
	Medicines      []medicine.Card `json:"medicines"`
	TotalMedicines int             `json:"totalMedicines"`
	DarkMode       bool            `json:"darkMode"`
}

// NeedyDashboard is the landing page for needy users.
type NeedyDashboard struct {
	app *AppContext
}

// NewNeedyDashboard returns the dashboard controller
func NewNeedyDashboard(app *AppContext) *NeedyDashboard {
	return &NeedyDashboard{app: app}
}

// Load reads needy profiles and medicines in parallel.
func (d *NeedyDashboard) Load(ctx context.Context) NeedyDashboardData {
	results := d.app.parallel(ctx,
		func(ctx context.Context) (interface{}, error) { return d.app.Backend.FetchAllNeedy(ctx), nil },
		func(ctx context.Context) (interface{}, error) { return d.app.Backend.FetchMedicines(ctx), nil },
	)
	people, _ := results[0].([]needy.Record)
	records, _ := results[1].([]medicine.Record)
	if people == nil {
		people = []needy.Record{}
	}

	now := d.app.now()
	keys, _ := medicine.AssignKeys(records)
	data := NeedyDashboardData{
		Needy:          people,
		Medicines:      []medicine.Card{},
		TotalMedicines: len(records),
		DarkMode:       d.app.DarkMode(),
	}
	for i, r := range records {
		if i == dashboardMedicines {
			break
		}
		data.Medicines = append(data.Medicines, medicine.NewCard(keys[i], r, now))
	}
	return data
}

// Logout ends the needy session and returns to the landing page.
func (d *NeedyDashboard) Logout() Outcome {
	return Outcome{OK: true, Redirect: RedirectHome}
}
