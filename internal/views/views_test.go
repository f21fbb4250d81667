package views

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/medihope/portal/internal/backend"
	"github.com/medihope/portal/internal/domain/medicine"
	"github.com/medihope/portal/internal/events"
	"github.com/medihope/portal/internal/forms"
	"github.com/medihope/portal/internal/preferences"
	"github.com/medihope/portal/pkg/workerpool"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SubmissionEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.SubmissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// stalledPublisher never reaches the broker: it fails with err, or blocks
// until its context ends when err is nil.
type stalledPublisher struct{ err error }

func (s stalledPublisher) Publish(ctx context.Context, _ events.SubmissionEvent) error {
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func newApp(t *testing.T, mux *http.ServeMux) (*AppContext, *recordingPublisher) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	pool := workerpool.New(workerpool.Config{Workers: 2, QueueSize: 4}, nil)
	pool.Start()
	t.Cleanup(func() { pool.Stop() })

	pub := &recordingPublisher{}
	return &AppContext{
		Prefs:   preferences.NewSettings(preferences.NewFileStore(t.TempDir()+"/prefs.json"), nil),
		Backend: client,
		Pool:    pool,
		Events:  pub,
		Clock:   func() time.Time { return now },
	}, pub
}

const medicinesJSON = `{"status":true,"data":[
	{"_id":"m1","medicine":"Paracetamol","company":"ABC","expdate":"2025-06-20","qty":10,"emailid":"a@x.com","contactno":"111"},
	{"_id":"m2","medicine":"Ibuprofen","company":"XYZ","expdate":"2024-01-01","qty":5,"emailid":"b@x.com"},
	{"medicine":"Cetirizine","company":"ABC","qty":3},
	{"_id":"m4","medicine":"Amoxicillin","company":"DEF","expdate":"2027-01-01","qty":1,"emailid":"a@x.com"},
	{"_id":"m5","medicine":"Vitamin C","company":"GHI","expdate":"2027-02-01","qty":1},
	{"_id":"m6","medicine":"Zinc","company":"GHI","expdate":"2027-03-01","qty":1},
	{"_id":"m7","medicine":"Iron","company":"GHI","expdate":"2027-04-01","qty":1}
]}`

func catalogueMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /medicine/fetch", reply(medicinesJSON))
	mux.HandleFunc("GET /donor/fetch", reply(`{"status":true,"data":[
		{"emailid":"a@x.com","name":"Alice","phoneNo":"222"},
		{"emailid":"b@x.com","name":""}
	]}`))
	return mux
}

func TestListedMedPage(t *testing.T) {
	app, _ := newApp(t, catalogueMux())
	v := NewListedMed(app)
	v.Load(context.Background())

	p := v.Page(medicine.Criteria{})
	assert.Equal(t, "All Available Medicines", p.Heading)
	assert.Equal(t, "Showing 7 of 7 medicines", p.Summary)
	assert.Equal(t, medicine.Stats{Total: 7, ExpiringSoon: 1, Expired: 1}, p.Stats)
	require.Len(t, p.Cards, 7)
	assert.Equal(t, "m1", p.Cards[0].Key)
	assert.Equal(t, medicine.LabelExpiringSoon, p.Cards[0].Status)
	assert.Equal(t, medicine.LabelExpired, p.Cards[1].Status)
	assert.NotEmpty(t, p.Cards[2].Key)

	p = v.Page(medicine.Criteria{Email: "A@X", Bucket: medicine.BucketValid})
	assert.Equal(t, "Medicines from: A@X", p.Heading)
	require.Len(t, p.Cards, 1)
	assert.Equal(t, "m4", p.Cards[0].Key)
	assert.Equal(t, medicine.Stats{Total: 7, ExpiringSoon: 1, Expired: 1}, p.Stats)
}

func TestListedMedEmptyState(t *testing.T) {
	app, _ := newApp(t, catalogueMux())
	v := NewListedMed(app)
	v.Load(context.Background())

	p := v.Page(medicine.Criteria{Email: "nobody@x.com"})
	assert.Equal(t, "No medicines found from nobody@x.com", p.EmptyTitle)
	assert.Equal(t, "Try a different email address", p.EmptyHint)

	p = v.Page(medicine.Criteria{Text: "zzz"})
	assert.Equal(t, "No medicines match your search criteria", p.EmptyTitle)
	assert.Equal(t, "Showing 0 of 7 medicines", p.Summary)
	assert.NotNil(t, p.Cards)
}

func TestListedMedDetail(t *testing.T) {
	app, _ := newApp(t, catalogueMux())
	v := NewListedMed(app)
	v.Load(context.Background())

	d, ok := v.Detail("m1")
	require.True(t, ok)
	assert.Equal(t, "Alice", d.DonorName)
	assert.Equal(t, "222", d.DonorPhone)

	d, ok = v.Detail("m2")
	require.True(t, ok)
	assert.Equal(t, "Anonymous Donor", d.DonorName)
	assert.True(t, d.Expired)

	_, ok = v.Detail("missing")
	assert.False(t, ok)
}

func TestListedMedBackendDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	app, _ := newApp(t, mux)
	v := NewListedMed(app)
	v.Load(context.Background())

	p := v.Page(medicine.Criteria{})
	assert.Equal(t, 0, p.Total)
	assert.Equal(t, "No medicines match your search criteria", p.EmptyTitle)
}

func TestNeedyDashboard(t *testing.T) {
	mux := catalogueMux()
	mux.HandleFunc("GET /needy/getall", reply(`{"status":true,"obj":[{"email":"n@x.com","name":"Neha"}]}`))
	app, _ := newApp(t, mux)

	data := NewNeedyDashboard(app).Load(context.Background())
	require.Len(t, data.Needy, 1)
	assert.Len(t, data.Medicines, 6)
	assert.Equal(t, 7, data.TotalMedicines)
	assert.Equal(t, "m1", data.Medicines[0].Key)

	assert.Equal(t, Outcome{OK: true, Redirect: RedirectHome}, NewNeedyDashboard(app).Logout())
}

func TestDonorDetailsFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /donor/fetch/{email}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("email") == "a@x.com" {
			reply(`{"status":true,"obj":{"emailid":"a@x.com","name":"Alice","profilepic":"https://cdn/p.png"}}`)(w, r)
			return
		}
		reply(`{"status":false}`)(w, r)
	})
	app, _ := newApp(t, mux)

	d := NewDonorDetails(app, nil)
	assert.Equal(t, advise("Please enter email first"), d.Fetch(context.Background()))

	require.NoError(t, d.Form().Set("emailid", "b@x.com"))
	assert.Equal(t, advise("No existing data found for this email"), d.Fetch(context.Background()))
	assert.False(t, d.Form().Loaded())

	require.NoError(t, d.Form().Set("emailid", "a@x.com"))
	out := d.Fetch(context.Background())
	assert.True(t, out.OK)
	assert.Equal(t, "Alice", d.Form().Get("name"))
	assert.Equal(t, "https://cdn/p.png", d.Form().Preview("profilepic"))
	assert.False(t, d.CanUpdate())

	require.NoError(t, d.Form().Set("name", "Alicia"))
	assert.True(t, d.CanUpdate())
	require.NoError(t, d.Form().Set("name", "Alice"))
	assert.False(t, d.CanUpdate())

	_, err := d.SelectAadhaar(&forms.File{Name: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, d.CanUpdate())
}

func TestDonorDetailsSave(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /donor/save", reply(`{"status":true,"msg":"Donor registered"}`))
	mux.HandleFunc("POST /donor/update", reply(`{"status":false,"msg":"Update failed"}`))
	app, pub := newApp(t, mux)

	d := NewDonorDetails(app, nil)
	require.NoError(t, d.Form().Set("emailid", "a@x.com"))
	assert.Equal(t, advise("Please fill in email and name fields"), d.Save(context.Background()))
	assert.Empty(t, pub.events)

	require.NoError(t, d.Form().Set("name", "Alice"))
	out := d.Save(context.Background())
	assert.Equal(t, Outcome{OK: true, Message: "Donor registered", Redirect: RedirectDonorDashboard}, out)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.KindDonorSaved, pub.events[0].Kind)
	assert.Equal(t, "a@x.com", pub.events[0].Key)
	assert.Equal(t, now, pub.events[0].At)

	out = d.Update(context.Background())
	assert.Equal(t, advise("Update failed"), out)
	assert.Equal(t, "Alice", d.Form().Get("name"))
	assert.Len(t, pub.events, 1)
}

func TestSaveSucceedsWhenPublishFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /donor/save", reply(`{"status":true,"msg":"Donor registered"}`))
	mux.HandleFunc("POST /needy/save", reply(`{"status":true,"msg":"Registered"}`))

	tests := []struct {
		name string
		pub  events.Publisher
	}{
		{"broker error", stalledPublisher{err: errors.New("broker unreachable")}},
		{"broker hangs", stalledPublisher{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newApp(t, mux)
			core, logs := observer.New(zapcore.WarnLevel)
			app.Logger = zap.New(core)
			app.Events = tt.pub
			app.PublishTimeout = 50 * time.Millisecond

			d := NewDonorDetails(app, nil)
			require.NoError(t, d.Form().Set("emailid", "a@x.com"))
			require.NoError(t, d.Form().Set("name", "Alice"))

			start := time.Now()
			out := d.Save(context.Background())
			assert.Equal(t, Outcome{OK: true, Message: "Donor registered", Redirect: RedirectDonorDashboard}, out)
			assert.Less(t, time.Since(start), 2*time.Second)

			p := NewNeedyProfile(app, nil)
			require.NoError(t, p.Form().Set("email", "n@x.com"))
			out = p.Save(context.Background())
			assert.Equal(t, Outcome{OK: true, Message: "Registered", Redirect: RedirectNeedyDashboard}, out)

			assert.Equal(t, 2, logs.FilterMessage("submission event dropped").Len())
		})
	}
}

func TestNeedyProfileLoadForEdit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /needy/fetch/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "n1":
			reply(`{"status":true,"obj":{"_id":"n1","email":"n@x.com","name":"Neha","aadhaarFrontUrl":"https://cdn/f.png"}}`)(w, r)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			reply(`{"status":false}`)(w, r)
		}
	})
	app, _ := newApp(t, mux)

	p := NewNeedyProfile(app, nil)
	assert.Equal(t, advise("Error loading data for editing"), p.LoadForEdit(context.Background(), "broken"))

	assert.True(t, p.LoadForEdit(context.Background(), "n1").OK)
	assert.Equal(t, "Neha", p.Form().Get("name"))
	assert.Equal(t, "https://cdn/f.png", p.Form().Preview("aadhaarFront"))
	assert.False(t, p.CanUpdate())

	p = NewNeedyProfile(app, nil)
	require.NoError(t, p.Form().Set("email", "missing@x.com"))
	assert.Equal(t, advise("Needy not found"), p.FetchByEmail(context.Background()))
}

func TestNeedyProfileOCR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /needy/aadhaar", reply(`{"status":false,"msg":"blurry"}`))
	mux.HandleFunc("POST /needy/aadhaarback", reply(`{"status":true,"address":"12 MG Road, Pune"}`))
	app, _ := newApp(t, mux)

	p := NewNeedyProfile(app, nil)
	require.NoError(t, p.Form().Set("name", "Typed Name"))

	out := p.UploadFront(context.Background(), &forms.File{Name: "f.jpg", Data: []byte("x")})
	assert.Equal(t, advise("OCR failed to extract data: blurry"), out)
	assert.Equal(t, "Typed Name", p.Form().Get("name"))
	assert.NotNil(t, p.Form().Pending("aadhaarFront"))

	out = p.UploadBack(context.Background(), &forms.File{Name: "b.jpg", Data: []byte("x")})
	assert.True(t, out.OK)
	assert.Equal(t, "12 MG Road, Pune", p.Form().Get("address"))
	assert.True(t, p.CanUpdate())
}

func TestNeedyProfileBackOCRFailureClearsAddress(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /needy/aadhaar", reply(`{"status":true,"data":{"name":"Neha Sharma","dob":"01/02/1990"}}`))
	mux.HandleFunc("POST /needy/aadhaarback", reply(`{"status":false,"msg":"no text"}`))
	app, _ := newApp(t, mux)

	p := NewNeedyProfile(app, nil)
	require.NoError(t, p.Form().Set("gender", "Female"))
	require.NoError(t, p.Form().Set("address", "old"))

	out := p.UploadFront(context.Background(), &forms.File{Name: "f.jpg", Data: []byte("x")})
	assert.True(t, out.OK)
	assert.Equal(t, "Neha Sharma", p.Form().Get("name"))
	assert.Equal(t, "", p.Form().Get("gender"))

	out = p.UploadBack(context.Background(), &forms.File{Name: "b.jpg", Data: []byte("x")})
	assert.False(t, out.OK)
	assert.Equal(t, "", p.Form().Get("address"))
}

func TestNeedyProfileSave(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /needy/save", reply(`{"status":true,"msg":"Registered"}`))
	app, pub := newApp(t, mux)

	p := NewNeedyProfile(app, nil)
	require.NoError(t, p.Form().Set("email", "n@x.com"))

	out := p.Save(context.Background())
	assert.Equal(t, Outcome{OK: true, Message: "Registered", Redirect: RedirectNeedyDashboard}, out)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.KindNeedySaved, pub.events[0].Kind)
}

func TestAppContextDarkMode(t *testing.T) {
	app, _ := newApp(t, http.NewServeMux())
	assert.False(t, app.DarkMode())

	_, err := app.Prefs.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, app.DarkMode())

	assert.False(t, (&AppContext{}).DarkMode())
}
