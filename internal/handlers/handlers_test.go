package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/crop"
	"github.com/photoprep/photoprep/internal/manifest"
	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/testsupport"
	"github.com/photoprep/photoprep/internal/uploader"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.OpenDelay = 0
	srv := httptest.NewServer(New(cfg).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func createWidget(t *testing.T, srv *httptest.Server, body string) uploader.View {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/api/widgets", "application/json", strings.NewReader(body))
	expectStatus(t, resp, http.StatusCreated)
	return decode[uploader.View](t, resp)
}

// multipartPhotos builds a form with one "files" part per photo
func multipartPhotos(t *testing.T, photos ...models.RawPhoto) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range photos {
		part, err := mw.CreateFormFile("files", p.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(p.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &buf
}

func TestHealthcheck(t *testing.T) {
	srv := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthcheck", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("Expected OK, got %q", body)
	}
}

func TestCreateWidgetValidation(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusCreated},
		{"upload mode", `{"mode":"upload","max_files":3}`, http.StatusCreated},
		{"custom ratio", `{"target_aspect_ratio":"4:3"}`, http.StatusCreated},
		{"bad mode", `{"mode":"gallery"}`, http.StatusBadRequest},
		{"bad ratio", `{"target_aspect_ratio":"wide"}`, http.StatusBadRequest},
		{"existing without editor", `{"existing":[{"url":"https://cdn.example.com/a.jpg"}]}`, http.StatusBadRequest},
		{"broken json", `{"mode":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/widgets", "application/json", strings.NewReader(tt.body))
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	resp := do(t, http.MethodGet, srv.URL+"/api/widgets", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if views := decode[[]uploader.View](t, resp); len(views) != 3 {
		t.Errorf("Expected 3 widgets, got %d", len(views))
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/widgets/missing", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestUploadCropAndSubmitFlow(t *testing.T) {
	srv := newServer(t)
	view := createWidget(t, srv, `{}`)
	base := srv.URL + "/api/widgets/" + view.ID

	landscape := testsupport.Photo(t, "wide.png", 400, 300)
	square := testsupport.Photo(t, "square.png", 50, 50)
	ct, body := multipartPhotos(t, landscape, square)

	resp := do(t, http.MethodPost, base+"/photos", ct, body)
	expectStatus(t, resp, http.StatusOK)
	report := decode[uploader.IngestReport](t, resp)
	if report.Accepted != 2 || report.NeedsCrop != 1 || report.Pending != 1 {
		t.Fatalf("Unexpected report %+v", report)
	}

	resp = do(t, http.MethodGet, base, "", nil)
	view = decode[uploader.View](t, resp)
	if view.Session.State != crop.Ready || view.Session.Index != 0 || view.Session.Rect == nil {
		t.Fatalf("Expected a mounted session on photo 0, got %+v", view.Session)
	}
	if view.Session.Rect.Dx() != 300 || view.Session.Rect.Dy() != 300 {
		t.Errorf("Expected the largest centred square, got %v", view.Session.Rect)
	}

	resp = do(t, http.MethodGet, srv.URL+view.Photos[0].SourcePreviewURL, "", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Errorf("Expected preview served as image/png, got %s", got)
	}

	resp = do(t, http.MethodPut, base+"/crop", "application/json", strings.NewReader(`{"pan":{"dx":-1000,"dy":0},"zoom":2}`))
	expectStatus(t, resp, http.StatusOK)
	view = decode[uploader.View](t, resp)
	if view.Session.State != crop.Cropping || view.Session.Rect.Dx() != 150 {
		t.Errorf("Expected a zoomed cropping session, got %+v", view.Session)
	}

	resp = do(t, http.MethodPost, base+"/crop/apply", "", nil)
	expectStatus(t, resp, http.StatusOK)
	view = decode[uploader.View](t, resp)
	if view.Pending != 0 || !view.Photos[0].Edited || view.Session.State != crop.Closed {
		t.Errorf("Expected an applied crop and a closed session, got %+v", view)
	}

	resp = do(t, http.MethodGet, base+"/pending", "", nil)
	if got := decode[map[string]int](t, resp); got["pending"] != 0 {
		t.Errorf("Expected 0 pending, got %v", got)
	}

	resp = do(t, http.MethodGet, base+"/uploads/0", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Expected cropped upload as image/jpeg, got %s", got)
	}
	resp = do(t, http.MethodGet, base+"/uploads/1", "", nil)
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, square.Data) {
		t.Error("square upload must be returned unchanged")
	}

	resp = do(t, http.MethodGet, base+"/events", "", nil)
	events := decode[[]models.Event](t, resp)
	if len(events) != 2 || events[1].Kind != models.EventCropApplied {
		t.Errorf("Expected classified then applied events, got %+v", events)
	}
	resp = do(t, http.MethodGet, base+"/events", "", nil)
	if events := decode[[]models.Event](t, resp); len(events) != 0 {
		t.Errorf("events must be drained, got %d", len(events))
	}
}

func TestCropErrorsMapToStatus(t *testing.T) {
	srv := newServer(t)
	view := createWidget(t, srv, `{}`)
	base := srv.URL + "/api/widgets/" + view.ID

	resp := do(t, http.MethodPost, base+"/crop/apply", "", nil)
	expectStatus(t, resp, http.StatusConflict)

	ct, body := multipartPhotos(t, testsupport.Photo(t, "a.png", 40, 40), testsupport.Photo(t, "b.png", 30, 40))
	expectStatus(t, do(t, http.MethodPost, base+"/photos", ct, body), http.StatusOK)

	expectStatus(t, do(t, http.MethodPost, base+"/crop/0", "", nil), http.StatusConflict)
	expectStatus(t, do(t, http.MethodPost, base+"/crop/x", "", nil), http.StatusBadRequest)

	resp = do(t, http.MethodPost, base+"/crop/0/confirm", "image/jpeg", bytes.NewReader(testsupport.JPEG(t, 10, 10)))
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, http.MethodPost, base+"/crop/1/confirm", "image/png", strings.NewReader("not an image"))
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = do(t, http.MethodPost, base+"/crop/1/confirm", "image/jpeg", bytes.NewReader(testsupport.JPEG(t, 10, 10)))
	expectStatus(t, resp, http.StatusOK)
	if view := decode[uploader.View](t, resp); view.Pending != 0 || !view.Photos[1].Edited {
		t.Errorf("Expected the confirmed crop recorded, got %+v", view.Photos[1])
	}

	expectStatus(t, do(t, http.MethodDelete, base+"/photos/9", "", nil), http.StatusNotFound)
}

func TestRemoveAndCancel(t *testing.T) {
	srv := newServer(t)
	view := createWidget(t, srv, `{}`)
	base := srv.URL + "/api/widgets/" + view.ID

	ct, body := multipartPhotos(t,
		testsupport.Photo(t, "a.png", 40, 40),
		testsupport.Photo(t, "b.png", 40, 40),
		testsupport.Photo(t, "c.png", 40, 30))
	expectStatus(t, do(t, http.MethodPost, base+"/photos", ct, body), http.StatusOK)

	resp := do(t, http.MethodDelete, base+"/photos/1", "", nil)
	expectStatus(t, resp, http.StatusOK)
	view = decode[uploader.View](t, resp)
	if len(view.Photos) != 2 || view.Session.Index != 1 {
		t.Errorf("Expected the session to follow c.png to index 1, got %d photos, session %+v", len(view.Photos), view.Session)
	}

	resp = do(t, http.MethodDelete, base+"/crop", "", nil)
	expectStatus(t, resp, http.StatusOK)
	view = decode[uploader.View](t, resp)
	if view.Session.State != crop.Closed || view.Pending != 1 {
		t.Errorf("cancel must close the session and leave the photo pending, got %+v", view)
	}

	expectStatus(t, do(t, http.MethodDelete, base, "", nil), http.StatusNoContent)
	expectStatus(t, do(t, http.MethodGet, base, "", nil), http.StatusNotFound)
}

func TestAddPhotosByURL(t *testing.T) {
	png := testsupport.PNG(t, 40, 30)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer images.Close()

	srv := newServer(t)
	view := createWidget(t, srv, `{}`)
	base := srv.URL + "/api/widgets/" + view.ID

	payload, _ := json.Marshal(map[string][]string{"image_urls": {images.URL + "/a.png", images.URL + "/gone.png"}})
	resp := do(t, http.MethodPost, base+"/photos", "application/json", bytes.NewReader(payload))
	expectStatus(t, resp, http.StatusOK)

	var got struct {
		uploader.IngestReport
		FetchErrors map[string]string `json:"fetch_errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Accepted != 1 || got.Pending != 1 || len(got.FetchErrors) != 1 {
		t.Errorf("Expected one fetched photo and one failure, got %+v", got)
	}

	expectStatus(t, do(t, http.MethodPost, base+"/photos", "application/json", strings.NewReader(`{}`)), http.StatusBadRequest)
}

func TestEditorWidgetAndManifest(t *testing.T) {
	srv := newServer(t)
	view := createWidget(t, srv, `{"mode":"editor","existing":[{"name":"old.jpg","url":"https://cdn.example.com/old.jpg","width":800,"height":600}]}`)
	if view.Mode != uploader.ModeEditor || len(view.Photos) != 1 || !view.Photos[0].Existing {
		t.Fatalf("Expected a preloaded editor widget, got %+v", view)
	}
	base := srv.URL + "/api/widgets/" + view.ID

	ct, body := multipartPhotos(t, testsupport.Photo(t, "new.png", 40, 30))
	expectStatus(t, do(t, http.MethodPost, base+"/photos", ct, body), http.StatusOK)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(base + "/uploads/0")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://cdn.example.com/old.jpg" {
		t.Errorf("existing item should redirect to its URL, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = do(t, http.MethodGet, base+"/manifest", "", nil)
	expectStatus(t, resp, http.StatusOK)
	m, err := manifest.ReadYAML(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Rows) != 2 || m.Pending != 1 || m.Rows[0].RemoteURL == "" || m.Rows[1].Name != "new.png" {
		t.Errorf("Unexpected manifest %+v", m)
	}

	resp = do(t, http.MethodGet, base+"/manifest?format=parquet", "", nil)
	expectStatus(t, resp, http.StatusOK)
	data, _ := io.ReadAll(resp.Body)
	rows, err := manifest.ReadParquet(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || !rows[1].NeedsCrop {
		t.Errorf("Unexpected parquet rows %+v", rows)
	}

	expectStatus(t, do(t, http.MethodGet, base+"/manifest?format=csv", "", nil), http.StatusBadRequest)
}
