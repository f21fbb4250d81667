package views

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/medihope/portal/internal/domain/donor"
	"github.com/medihope/portal/internal/domain/medicine"
)

// ListedMed is the medicine catalogue page.
type ListedMed struct {
	app *AppContext

	mu      sync.RWMutex
	records []medicine.Record
	keys    []string
	byKey   map[string]int
	donors  *donor.Index
}

// NewListedMed returns an empty catalogue
func NewListedMed(app *AppContext) *ListedMed {
	return &ListedMed{app: app, donors: donor.BuildIndex(nil), byKey: map[string]int{}}
}

// Load fetches medicines and donors in parallel and rebuilds the donor
// index. Failed reads leave the page empty rather than failing.
func (v *ListedMed) Load(ctx context.Context) {
	results := v.app.parallel(ctx,
		func(ctx context.Context) (interface{}, error) { return v.app.Backend.FetchMedicines(ctx), nil },
		func(ctx context.Context) (interface{}, error) { return v.app.Backend.FetchDonors(ctx), nil },
	)
	records, _ := results[0].([]medicine.Record)
	donors, _ := results[1].([]donor.Record)

	keys, repeated := medicine.AssignKeys(records)
	if len(repeated) > 0 {
		v.app.logger().Warn("duplicate medicine records",
			zap.Strings("keys", repeated))
	}
	byKey := make(map[string]int, len(keys))
	for i, k := range keys {
		byKey[k] = i
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = records
	v.keys = keys
	v.byKey = byKey
	v.donors = donor.BuildIndex(donors)
}

// Page is the rendered catalogue
type Page struct {
	Heading    string          `json:"heading"`
	Summary    string          `json:"summary"`
	Shown      int             `json:"shown"`
	Total      int             `json:"total"`
	EmptyTitle string          `json:"emptyTitle,omitempty"`
	EmptyHint  string          `json:"emptyHint,omitempty"`
	Cards      []medicine.Card `json:"cards"`
	Stats      medicine.Stats  `json:"stats"`
	DarkMode   bool            `json:"darkMode"`
}

// Page filters the loaded medicines. Stats always cover the whole
// collection.
func (v *ListedMed) Page(c medicine.Criteria) Page {
	v.mu.RLock()
	defer v.mu.RUnlock()

	now := v.app.now()
	p := Page{
		Heading:  "All Available Medicines",
		Total:    len(v.records),
		Cards:    []medicine.Card{},
		Stats:    medicine.Summarize(v.records, now),
		DarkMode: v.app.DarkMode(),
	}
	if c.Email != "" {
		p.Heading = "Medicines from: " + c.Email
	}

	kept := medicine.Filter(v.records, c, now)
	keyOf := v.keysFor(kept)
	for i, r := range kept {
		p.Cards = append(p.Cards, medicine.NewCard(keyOf[i], r, now))
	}
	p.Shown = len(p.Cards)
	p.Summary = fmt.Sprintf("Showing %d of %d medicines", p.Shown, p.Total)
	v.app.Metrics.ObserveFilter(p.Shown)

	if p.Shown == 0 {
		if c.Email != "" {
			p.EmptyTitle = "No medicines found from " + c.Email
			p.EmptyHint = "Try a different email address"
		} else {
			p.EmptyTitle = "No medicines match your search criteria"
			p.EmptyHint = "Try adjusting your search or filter criteria"
		}
	}
	return p
}

// keysFor maps filtered records back to their keys. Filter keeps order,
// so one forward walk over the full collection is enough.
func (v *ListedMed) keysFor(kept []medicine.Record) []string {
	out := make([]string, len(kept))
	j := 0
	for i := range v.records {
		if j == len(kept) {
			break
		}
		if v.records[i] == kept[j] {
			out[j] = v.keys[i]
			j++
		}
	}
	return out
}

// Detail returns the detail view for the medicine under key
func (v *ListedMed) Detail(key string) (medicine.Detail, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	i, ok := v.byKey[key]
	if !ok {
		return medicine.Detail{}, false
	}
	return medicine.NewDetail(key, v.records[i], v.donors, v.app.now()), true
}
