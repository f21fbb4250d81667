package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medihope/portal/internal/backend"
	"github.com/medihope/portal/internal/preferences"
	"github.com/medihope/portal/internal/views"
)

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

type fakeBackend struct {
	mux       *http.ServeMux
	lastDonor map[string][]string
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{mux: http.NewServeMux()}
	fb.mux.HandleFunc("GET /medicine/fetch", reply(`{"status":true,"data":[
		{"_id":"m1","medicine":"Paracetamol","company":"ABC","expdate":"2025-06-20","qty":10,"emailid":"a@x.com"},
		{"_id":"m2","medicine":"Ibuprofen","company":"XYZ","expdate":"2024-01-01","qty":5}
	]}`))
	fb.mux.HandleFunc("GET /donor/fetch", reply(`{"status":true,"data":[{"emailid":"a@x.com","name":"Alice"}]}`))
	fb.mux.HandleFunc("GET /needy/fetch/{id}", reply(`{"status":false}`))
	fb.mux.HandleFunc("POST /donor/save", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			fb.lastDonor = r.MultipartForm.Value
		}
		reply(`{"status":true,"msg":"Donor saved"}`)(w, r)
	})
	fb.mux.HandleFunc("POST /needy/aadhaarback", reply(`{"status":true,"address":"12 MG Road"}`))
	return fb
}

func newTestRouter(t *testing.T, checks map[string]ReadyCheck) (http.Handler, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.mux)
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	app := &views.AppContext{
		Prefs:   preferences.NewSettings(preferences.NewFileStore(t.TempDir()+"/prefs.json"), nil),
		Backend: client,
		Clock:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return NewRouter(app, nil, checks), fb
}

func do(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestRouter(t, map[string]ReadyCheck{
		"backend": func(context.Context) error { return errors.New("circuit open") },
	})

	rec := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ServiceName)

	rec = do(t, h, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListMedicines(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/medicines?status=expired", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode(t, rec)
	assert.Equal(t, "Showing 1 of 2 medicines", page["summary"])
	cards := page["cards"].([]interface{})
	require.Len(t, cards, 1)
	assert.Equal(t, "m2", cards[0].(map[string]interface{})["key"])
}

func TestGetMedicineDetail(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/medicines/m1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode(t, rec)["donorName"])

	rec = do(t, h, http.MethodGet, "/api/v1/medicines/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveDonor(t *testing.T) {
	h, fb := newTestRouter(t, nil)

	body, ct := multipartBody(t, map[string]string{"emailid": "a@x.com"}, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/donors", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please fill in email and name fields", decode(t, rec)["message"])

	body, ct = multipartBody(t, map[string]string{"emailid": "a@x.com", "name": "Alice", "isAdmin": "true"}, nil)
	rec = do(t, h, http.MethodPost, "/api/v1/donors", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "/donor/dashboard", out["redirect"])
	assert.Equal(t, []string{"Alice"}, fb.lastDonor["name"])
	assert.NotContains(t, fb.lastDonor, "isAdmin")
}

func TestSaveDonorRejectsNonMultipart(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/donors", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNeedyOCRBack(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Neha"}, map[string]string{"aadhaarBack": "back.jpg"})
	rec := do(t, h, http.MethodPost, "/api/v1/needy/ocr/back", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	form := decode(t, rec)["form"].(map[string]interface{})
	values := form["values"].(map[string]interface{})
	assert.Equal(t, "12 MG Road", values["address"])
	assert.Equal(t, "Neha", values["name"])

	body, ct = multipartBody(t, map[string]string{"name": "Neha"}, nil)
	rec = do(t, h, http.MethodPost, "/api/v1/needy/ocr/back", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNeedyNotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/needy/n404", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/needy/n@x.com?by=email", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Needy not found", decode(t, rec)["message"])
}

func TestFormDirty(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	tests := []struct {
		name  string
		path  string
		body  string
		code  int
		dirty bool
	}{
		{"unchanged", "/api/v1/forms/donor/dirty",
			`{"current":{"name":"Alice"},"original":{"name":"Alice"}}`, http.StatusOK, false},
		{"edited", "/api/v1/forms/donor/dirty",
			`{"current":{"name":"Alicia"},"original":{"name":"Alice"}}`, http.StatusOK, true},
		{"blank untouched", "/api/v1/forms/needy/dirty",
			`{"current":{"email":""}}`, http.StatusOK, false},
		{"pending file", "/api/v1/forms/needy/dirty",
			`{"current":{},"original":{},"pending":["aadhaarFront"]}`, http.StatusOK, true},
		{"preview replaced", "/api/v1/forms/donor/dirty",
			`{"previews":{"profilepic":"local:1"},"originalPreviews":{"profilepic":"https://cdn/p.png"}}`, http.StatusOK, true},
		{"unknown field", "/api/v1/forms/donor/dirty",
			`{"current":{"isAdmin":"true"}}`, http.StatusBadRequest, false},
		{"unknown form", "/api/v1/forms/admin/dirty", `{}`, http.StatusNotFound, false},
		{"bad json", "/api/v1/forms/donor/dirty", `{`, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, bytes.NewBufferString(tt.body), "application/json")
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.dirty, decode(t, rec)["dirty"])
			}
		})
	}
}

func TestDarkModePreference(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/preferences", nil, "")
	assert.JSONEq(t, `{"darkMode":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/preferences/dark-mode", bytes.NewBufferString(`{"darkMode":true}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/medicines", nil, "")
	assert.Equal(t, true, decode(t, rec)["darkMode"])

	rec = do(t, h, http.MethodPost, "/api/v1/preferences/dark-mode/toggle", nil, "")
	assert.JSONEq(t, `{"darkMode":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/preferences/dark-mode", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "darkMode"))
}
