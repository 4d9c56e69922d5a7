package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/models"
	"github.com/kdduha/bgremover/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

type fakeService struct {
	result string
	err    error

	mu        sync.Mutex
	calls     int
	gotBase64 string
	gotMIME   string
}

func (f *fakeService) RemoveBackground(_ context.Context, base64Image, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.gotBase64 = base64Image
	f.gotMIME = mimeType
	return f.result, f.err
}

func (f *fakeService) last() (calls int, base64Image, mimeType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.gotBase64, f.gotMIME
}

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	previews *session.PreviewStore
}

func newTestEnv(t *testing.T, svc *fakeService, maxSize int64) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	previews := session.NewPreviewStore("/previews/")
	manager := session.NewManager(logger, svc, previews, time.Hour)
	s := NewSessionHandler(manager, previews, config.UploadConfig{
		MaxSize:      maxSize,
		AllowedTypes: []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/tiff"},
	}, logger)
	rm := NewRemoveHandler(svc, logger)

	r := chi.NewRouter()
	r.Get("/", s.Index)
	r.Get("/state", s.State)
	r.Post("/file", s.SelectFile)
	r.Post("/remove", s.Remove)
	r.Get("/previews/{id}", s.Preview)
	r.Get("/download", s.Download)
	r.Post("/api/v1/remove-background", rm.RemoveBackground)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		previews: previews,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, asJSON bool) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func (e *testEnv) upload(t *testing.T, filename, partType string, data []byte, asJSON bool) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	if partType != "" {
		h.Set("Content-Type", partType)
	}
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return e.do(t, http.MethodPost, "/file", body, writer.FormDataContentType(), asJSON)
}

func decodeSnapshot(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var snap map[string]any
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: base64.StdEncoding.EncodeToString(pngPixel)}
	env := newTestEnv(t, svc, 1<<20)

	resp := env.do(t, http.MethodGet, "/state", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", decodeSnapshot(t, resp)["state"])

	resp = env.do(t, http.MethodGet, "/download", nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.upload(t, "pixel.png", "", pngPixel, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, "ready", snap["state"])
	assert.Equal(t, "pixel.png", snap["file_name"])
	assert.Equal(t, "image/png", snap["mime_type"])
	assert.Equal(t, true, snap["can_trigger"])

	previewURL, _ := snap["preview_url"].(string)
	require.NotEmpty(t, previewURL)
	resp = env.do(t, http.MethodGet, previewURL, nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "sandbox; default-src 'none'", resp.Header.Get("Content-Security-Policy"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, got)

	resp = env.do(t, http.MethodPost, "/remove?wait=true", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	assert.Equal(t, "succeeded", snap["state"])
	assert.Equal(t, "data:image/png;base64,"+svc.result, snap["result"])
	_, gotBase64, gotMIME := svc.last()
	assert.Equal(t, "image/png", gotMIME)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngPixel), gotBase64)

	resp = env.do(t, http.MethodGet, "/download", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="background-removed.png"`, resp.Header.Get("Content-Disposition"))
	got, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, got)

	resp = env.do(t, http.MethodGet, "/", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), `data-state="succeeded"`)
	assert.Contains(t, string(page), `href="/download"`)
	assert.Contains(t, string(page), "data:image/png;base64,")

	// re-selecting drops the result and releases the old preview
	resp = env.upload(t, "again.png", "image/png", pngPixel, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	assert.Equal(t, "ready", snap["state"])
	assert.Nil(t, snap["result"])
	assert.Equal(t, 1, env.previews.Len())

	resp = env.do(t, http.MethodGet, previewURL, nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionFailureShowsGenericMessage(t *testing.T) {
	t.Parallel()

	svc := &fakeService{err: errors.New("inference error: no-image-in-response")}
	env := newTestEnv(t, svc, 1<<20)

	resp := env.upload(t, "pixel.png", "", pngPixel, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/remove?wait=true", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, "failed", snap["state"])
	assert.Equal(t, "Failed to remove background. Please try again.", snap["error"])
	assert.Equal(t, false, snap["loading"])

	resp = env.do(t, http.MethodGet, "/", nil, "", false)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "An Error Occurred")
	assert.NotContains(t, string(page), "no-image-in-response")
}

func TestRemoveWithoutFileConflicts(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	env := newTestEnv(t, svc, 1<<20)

	resp := env.do(t, http.MethodPost, "/remove", nil, "", true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "idle", decodeSnapshot(t, resp)["state"])
	calls, _, _ := svc.last()
	assert.Zero(t, calls)
}

func TestFormPostsRedirect(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeService{result: "iVBORtest"}, 1<<20)

	resp := env.upload(t, "pixel.png", "", pngPixel, false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodPost, "/remove", nil, "", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestSelectFileRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		maxSize    int64
		partType   string
		data       []byte
		wantStatus int
	}{
		{
			name:       "not an image",
			maxSize:    1 << 20,
			data:       []byte("just some text, definitely not pixels"),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "declared pdf",
			maxSize:    1 << 20,
			partType:   "application/pdf",
			data:       pngPixel,
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "corrupt png",
			maxSize:    1 << 20,
			partType:   "image/png",
			data:       pngPixel[:20],
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "text declared as png",
			maxSize:    1 << 20,
			partType:   "image/png",
			data:       []byte("not really a png"),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "svg with script",
			maxSize:    1 << 20,
			partType:   "image/svg+xml",
			data:       []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>fetch('/state')</script></svg>`),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "html declared as custom image type",
			maxSize:    1 << 20,
			partType:   "image/x-anything",
			data:       []byte(`<html><body><script>alert(document.cookie)</script></body></html>`),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "too large",
			maxSize:    16,
			data:       pngPixel,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, &fakeService{}, tt.maxSize)
			resp := env.upload(t, "upload.bin", tt.partType, tt.data, true)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body models.ErrorResponse
			require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)

			resp = env.do(t, http.MethodGet, "/state", nil, "", true)
			assert.Equal(t, "idle", decodeSnapshot(t, resp)["state"])
		})
	}
}

func TestRemoveBackgroundAPI(t *testing.T) {
	t.Parallel()

	valid := base64.StdEncoding.EncodeToString(pngPixel)

	tests := []struct {
		name       string
		body       string
		svc        *fakeService
		wantStatus int
		wantMIME   string
		wantErr    string
	}{
		{
			name:       "ok with sniffed type",
			body:       `{"image_base64":"` + valid + `"}`,
			svc:        &fakeService{result: "iVBORtest"},
			wantStatus: http.StatusOK,
			wantMIME:   "image/png",
		},
		{
			name:       "ok with declared type",
			body:       `{"image_base64":"` + valid + `","mime_type":"image/webp"}`,
			svc:        &fakeService{result: "iVBORtest"},
			wantStatus: http.StatusOK,
			wantMIME:   "image/webp",
		},
		{
			name:       "invalid json",
			body:       `{"image_base64":`,
			svc:        &fakeService{},
			wantStatus: http.StatusBadRequest,
			wantErr:    "invalid JSON",
		},
		{
			name:       "empty image",
			body:       `{"image_base64":""}`,
			svc:        &fakeService{},
			wantStatus: http.StatusBadRequest,
			wantErr:    "image_base64 is empty",
		},
		{
			name:       "not base64",
			body:       `{"image_base64":"@@@"}`,
			svc:        &fakeService{},
			wantStatus: http.StatusBadRequest,
			wantErr:    "not valid base64",
		},
		{
			name:       "declared non image",
			body:       `{"image_base64":"` + valid + `","mime_type":"text/plain"}`,
			svc:        &fakeService{},
			wantStatus: http.StatusBadRequest,
			wantErr:    "not an image type",
		},
		{
			name:       "sniffed non image",
			body:       `{"image_base64":"` + base64.StdEncoding.EncodeToString([]byte("hello world")) + `"}`,
			svc:        &fakeService{},
			wantStatus: http.StatusUnsupportedMediaType,
			wantErr:    "unsupported content type",
		},
		{
			name:       "inference failure",
			body:       `{"image_base64":"` + valid + `"}`,
			svc:        &fakeService{err: errors.New("500 internal")},
			wantStatus: http.StatusBadGateway,
			wantErr:    "Failed to remove background. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, tt.svc, 1<<20)
			resp := env.do(t, http.MethodPost, "/api/v1/remove-background", strings.NewReader(tt.body), "application/json", true)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			if tt.wantErr != "" {
				var body models.ErrorResponse
				require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body))
				assert.Contains(t, body.Error, tt.wantErr)
				return
			}

			var body models.RemoveBackgroundResponse
			require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "iVBORtest", body.ImageBase64)
			assert.Equal(t, "data:image/png;base64,iVBORtest", body.DataURI)
			calls, _, gotMIME := tt.svc.last()
			assert.Equal(t, tt.wantMIME, gotMIME)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestIndexViews(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snap     session.Snapshot
		contains []string
		excludes []string
	}{
		{
			name:     "idle",
			snap:     session.Snapshot{State: session.Idle},
			contains: []string{`data-state="idle"`, "Your processed image will appear here", "disabled"},
			excludes: []string{`http-equiv="refresh"`, `href="/download"`},
		},
		{
			name:     "loading",
			snap:     session.Snapshot{State: session.Loading, Loading: true, PreviewURL: "/previews/x"},
			contains: []string{`http-equiv="refresh"`, "Removing background...", "Processing..."},
			excludes: []string{`href="/download"`},
		},
		{
			name:     "succeeded",
			snap:     session.Snapshot{State: session.Succeeded, Result: "data:image/png;base64,iVBORtest", CanTrigger: true},
			contains: []string{`src="data:image/png;base64,iVBORtest"`, `href="/download"`},
			excludes: []string{"ZgotmplZ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			renderIndex(rec, tt.snap, zap.NewNop())
			require.Equal(t, http.StatusOK, rec.Code)

			page := rec.Body.String()
			for _, s := range tt.contains {
				assert.Contains(t, page, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, page, s)
			}
		})
	}
}

func TestSelectFileTrustsContentOverDeclaredType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeService{}, 1<<20)

	resp := env.upload(t, "pixel.jpg", "image/jpeg", pngPixel, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, "image/png", snap["mime_type"])

	previewURL, _ := snap["preview_url"].(string)
	require.NotEmpty(t, previewURL)

	// previews are reachable without the session cookie
	resp, err := http.Get(env.server.URL + previewURL)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox")
}
