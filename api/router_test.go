package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/driver/memory"
	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/hooks"
	"github.com/youssefsiam38/activitypg/metrics"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New().GetStore()
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		t.Fatal(err)
	}
	registry := hooks.NewRegistry()
	registry.Register(recorder)

	gw := gateway.New(store, &gateway.Config{
		Blobs: blob.NewMemory("http://localhost/blobs"),
		Hooks: registry,
	})
	authn := auth.New(store, nil, &auth.Config{BcryptCost: 4})
	return &testServer{
		t:       t,
		handler: NewRouter(authn, gw, &Config{Gatherer: reg}),
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	return s.send(req)
}

func (s *testServer) send(req *http.Request) *httptest.ResponseRecorder {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signIn() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/signup", map[string]string{
		"email": "ash@example.com", "password": "pikachu", "full_name": "Ash Ketchum",
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("signup status = %d: %s", rec.Code, rec.Body)
	}
	rec = s.do(http.MethodPost, "/auth/signin", map[string]string{
		"email": "ash@example.com", "password": "pikachu",
	})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("signin status = %d: %s", rec.Code, rec.Body)
	}
	var session auth.Session
	decodeData(s.t, rec, &session)
	s.token = session.Token
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) *Meta {
	t.Helper()
	var resp struct {
		Data  json.RawMessage `json:"data"`
		Error *APIError       `json:"error"`
		Meta  *Meta           `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
	if v != nil {
		if err := json.Unmarshal(resp.Data, v); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return resp.Meta
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("expected error response, got %s", rec.Body)
	}
	return resp.Error.Code
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/notes", nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "unauthenticated" {
		t.Errorf("GET /notes without token = %d", rec.Code)
	}

	s.signIn()

	rec = s.do(http.MethodGet, "/profile", nil)
	var profile struct {
		FullName string `json:"full_name"`
	}
	decodeData(t, rec, &profile)
	if profile.FullName != "Ash Ketchum" {
		t.Errorf("profile full_name = %q, want name from sign-up", profile.FullName)
	}

	rec = s.do(http.MethodPut, "/profile", map[string]string{"full_name": "Ash"})
	decodeData(t, rec, &profile)
	if profile.FullName != "Ash" {
		t.Errorf("updated full_name = %q", profile.FullName)
	}

	rec = s.do(http.MethodPost, "/auth/signout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signout status = %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /profile after signout = %d, want 401", rec.Code)
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	s.token = ""

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate email", "/auth/signup", map[string]string{"email": "ash@example.com", "password": "pikachu"}, http.StatusConflict, "email_taken"},
		{"short password", "/auth/signup", map[string]string{"email": "misty@example.com", "password": "abc"}, http.StatusBadRequest, "invalid_input"},
		{"wrong password", "/auth/signin", map[string]string{"email": "ash@example.com", "password": "raichu"}, http.StatusUnauthorized, "invalid_credentials"},
		{"malformed body", "/auth/signin", "not an object", http.StatusBadRequest, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestNotesEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signIn()

	for _, title := range []string{"alpha", "beta", "gamma"} {
		rec := s.do(http.MethodPost, "/notes", map[string]string{"title": title, "content": "# " + title})
		if rec.Code != http.StatusCreated {
			t.Fatalf("POST /notes status = %d: %s", rec.Code, rec.Body)
		}
	}

	rec := s.do(http.MethodGet, "/notes?limit=2&order_by=title&order_dir=asc", nil)
	var notes []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	meta := decodeData(t, rec, &notes)
	if len(notes) != 2 || notes[0].Title != "alpha" || notes[1].Title != "beta" {
		t.Fatalf("notes = %+v", notes)
	}
	if meta == nil || !meta.HasMore || meta.Limit != 2 {
		t.Errorf("meta = %+v", meta)
	}

	rec = s.do(http.MethodGet, "/notes?q=gam", nil)
	decodeData(t, rec, &notes)
	if len(notes) != 1 || notes[0].Title != "gamma" {
		t.Errorf("filtered notes = %+v", notes)
	}
	id := notes[0].ID

	rec = s.do(http.MethodGet, "/notes/"+id+"/html", nil)
	var rendered map[string]string
	decodeData(t, rec, &rendered)
	if !strings.Contains(rendered["html"], "<h1") {
		t.Errorf("html = %q", rendered["html"])
	}

	rec = s.do(http.MethodPatch, "/notes/"+id, map[string]string{"title": "delta"})
	var updated struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	decodeData(t, rec, &updated)
	if updated.Title != "delta" || updated.Content != "# gamma" {
		t.Errorf("updated = %+v", updated)
	}

	rec = s.do(http.MethodDelete, "/notes/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/notes/"+id, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Errorf("GET deleted note = %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/notes/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET malformed id = %d, want 400", rec.Code)
	}
	rec = s.do(http.MethodPost, "/notes", map[string]string{"title": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST empty title = %d, want 400", rec.Code)
	}
}

func TestTodosEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signIn()

	rec := s.do(http.MethodPost, "/todos", map[string]string{"title": "wash car", "content": "sunday"})
	var todo struct {
		ID    string `json:"id"`
		Level string `json:"level"`
	}
	decodeData(t, rec, &todo)
	if todo.Level != "low" {
		t.Errorf("level = %q, want low", todo.Level)
	}

	rec = s.do(http.MethodPatch, "/todos/"+todo.ID, map[string]string{"level": "urgent"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PATCH invalid level = %d, want 400", rec.Code)
	}
	rec = s.do(http.MethodPatch, "/todos/"+todo.ID, map[string]string{"level": "high"})
	decodeData(t, rec, &todo)
	if todo.Level != "high" {
		t.Errorf("level = %q, want high", todo.Level)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestPhotosEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signIn()

	body, contentType := multipartBody(t, map[string]string{"name": "Pikachu", "category": "pokemon"}, "pika.png", "png bytes")
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	rec := s.send(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /photos status = %d: %s", rec.Code, rec.Body)
	}
	var photo struct {
		ID        string `json:"id"`
		ObjectKey string `json:"object_key"`
		ImageURL  string `json:"image_url"`
	}
	decodeData(t, rec, &photo)
	if photo.ImageURL != "http://localhost/blobs/"+photo.ObjectKey {
		t.Errorf("image_url = %q", photo.ImageURL)
	}

	rec = s.do(http.MethodGet, "/blobs/"+photo.ObjectKey, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "png bytes" {
		t.Errorf("GET blob = %d %q", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/photos?category=pokemon&q=pika", nil)
	var photos []json.RawMessage
	decodeData(t, rec, &photos)
	if len(photos) != 1 {
		t.Errorf("listed %d photos, want 1", len(photos))
	}
	rec = s.do(http.MethodGet, "/photos?category=cars", nil)
	decodeData(t, rec, &photos)
	if len(photos) != 0 {
		t.Errorf("listed %d cars, want 0", len(photos))
	}

	body, contentType = multipartBody(t, map[string]string{"name": "Raichu"}, "", "")
	req = httptest.NewRequest(http.MethodPatch, "/photos/"+photo.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec = s.send(req)
	var renamed struct {
		Name      string `json:"name"`
		ObjectKey string `json:"object_key"`
	}
	decodeData(t, rec, &renamed)
	if renamed.Name != "Raichu" || renamed.ObjectKey != photo.ObjectKey {
		t.Errorf("renamed = %+v", renamed)
	}

	rec = s.do(http.MethodPost, "/photos/"+photo.ID+"/reviews", map[string]string{"content": "cute"})
	var review struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &review)
	rec = s.do(http.MethodPatch, "/reviews/"+review.ID, map[string]string{"content": "very cute"})
	if rec.Code != http.StatusOK {
		t.Errorf("PATCH review = %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/photos/"+photo.ID+"/reviews", nil)
	var reviews []struct {
		Content string `json:"content"`
	}
	decodeData(t, rec, &reviews)
	if len(reviews) != 1 || reviews[0].Content != "very cute" {
		t.Errorf("reviews = %+v", reviews)
	}

	rec = s.do(http.MethodDelete, "/photos/"+photo.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE photo = %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/blobs/"+photo.ObjectKey, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted blob = %d, want 404", rec.Code)
	}
}

func TestPhotoUploadTooLarge(t *testing.T) {
	store := memory.New().GetStore()
	gw := gateway.New(store, nil)
	authn := auth.New(store, nil, &auth.Config{BcryptCost: 4})
	s := &testServer{t: t, handler: NewRouter(authn, gw, &Config{MaxUploadBytes: 64})}
	s.signIn()

	body, contentType := multipartBody(t, map[string]string{"name": "big", "category": "c"}, "big.png", strings.Repeat("x", 1024))
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	rec := s.send(req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	s.do(http.MethodGet, "/notes", nil)

	rec := s.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `activitypg_gateway_calls_total{entity="note",op="list",result="success"} 1`) {
		t.Errorf("metrics missing note list call:\n%s", rec.Body)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), nopLogger{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
