package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opensitee/ingredientcheck/internal/annotate"
	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/imagestore/local"
	"github.com/opensitee/ingredientcheck/internal/service"
	"github.com/opensitee/ingredientcheck/internal/web"
	"github.com/opensitee/ingredientcheck/internal/web/templates"
)

// labelPNG is a small, fully decodable PNG.
var labelPNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// recordingExtractor captures the image it was handed and returns canned text.
type recordingExtractor struct {
	mu       sync.Mutex
	lastPath string
	lastData []byte
	text     string
	err      error
}

func (r *recordingExtractor) Extract(_ context.Context, img domain.ImageHandle) (string, error) {
	data, err := img.ReadAll()
	if err != nil {
		return "", fmt.Errorf("recordingExtractor: read image: %w", err)
	}
	r.mu.Lock()
	r.lastPath = img.Path
	r.lastData = data
	r.mu.Unlock()
	return r.text, r.err
}

func (r *recordingExtractor) LastData() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastData
}

func (r *recordingExtractor) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPath
}

// stubAgent returns a canned analysis.
type stubAgent struct {
	mu     sync.Mutex
	out    string
	err    error
	prompt domain.AnalysisPrompt
}

func (s *stubAgent) Run(_ context.Context, p domain.AnalysisPrompt) (string, error) {
	s.mu.Lock()
	s.prompt = p
	s.mu.Unlock()
	return s.out, s.err
}

func (s *stubAgent) LastPrompt() domain.AnalysisPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// newTestServer wires a real web.Server and AnalysisService to the given
// stubs. Uploads land in a per-test temp directory whose path is returned.
func newTestServer(t *testing.T, ex *recordingExtractor, ag *stubAgent, maxUpload int64) (*httptest.Server, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	images, err := local.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	svc := service.NewAnalysisService(ex, ag, annotate.FixedRater(4), time.Minute, 2, logger)
	srv := httptest.NewServer(web.NewServer(svc, templates.FS, images, maxUpload, logger))
	t.Cleanup(srv.Close)
	return srv, dir
}

// buildMultipartBody creates a multipart/form-data body with an "image" field
// and an optional "health" field.
func buildMultipartBody(t *testing.T, imageData []byte, health string) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if imageData != nil {
		fw, err := w.CreateFormFile("image", "label.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(imageData); err != nil {
			t.Fatalf("write image data: %v", err)
		}
	}
	if health != "" {
		if err := w.WriteField("health", health); err != nil {
			t.Fatalf("write health field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func postAnalyze(t *testing.T, srv *httptest.Server, path string, imageData []byte, health string) *http.Response {
	t.Helper()
	body, ct := buildMultipartBody(t, imageData, health)
	resp, err := http.Post(srv.URL+path, ct, body)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("upload directory not cleaned up: %d entries left", len(entries))
	}
}

func TestIntegration_Index(t *testing.T) {
	srv, _ := newTestServer(t, &recordingExtractor{}, &stubAgent{}, 1<<20)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `action="/analyze"`) {
		t.Errorf("index page missing upload form")
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestIntegration_UnknownPath(t *testing.T) {
	srv, _ := newTestServer(t, &recordingExtractor{}, &stubAgent{}, 1<<20)

	resp, err := http.Get(srv.URL + "/areas")
	if err != nil {
		t.Fatalf("GET /areas: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /areas status %d, want 404", resp.StatusCode)
	}
}

func TestIntegration_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, &recordingExtractor{}, &stubAgent{}, 1<<20)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET /healthz = %d %q", resp.StatusCode, body)
	}
}

// TestIntegration_AnalyzeAPI verifies the full pipeline from upload to JSON
// response, and that the stored upload is removed afterwards.
func TestIntegration_AnalyzeAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ex := &recordingExtractor{text: "sugar, sodium benzoate"}
	ag := &stubAgent{out: "This has preservatives and chemicals."}
	srv, dir := newTestServer(t, ex, ag, 1<<20)

	resp := postAnalyze(t, srv, "/api/analyze", labelPNG, "diabetes")
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	var got struct {
		RequestID string `json:"request_id"`
		Rating    int    `json:"rating"`
		Result    string `json:"result"`
	}
	decodeJSON(t, resp, &got)

	if got.RequestID == "" {
		t.Errorf("missing request_id")
	}
	if got.Rating != 4 {
		t.Errorf("rating = %d, want 4", got.Rating)
	}
	if !strings.HasPrefix(got.Result, "🌟 Rating: 4 / 5 🌟\n\n") {
		t.Errorf("result missing banner: %q", got.Result)
	}
	if !strings.Contains(got.Result, "**preservatives** ⚠️") || !strings.Contains(got.Result, "**chemicals** 🧪") {
		t.Errorf("result missing highlights: %q", got.Result)
	}

	if !bytes.Equal(ex.LastData(), labelPNG) {
		t.Errorf("extractor received %d bytes, want the uploaded %d", len(ex.LastData()), len(labelPNG))
	}
	if !strings.HasSuffix(ex.LastPath(), ".png") {
		t.Errorf("stored upload path %q should keep the png extension", ex.LastPath())
	}
	if p := ag.LastPrompt(); !strings.Contains(p.User, "The user has a health problem: diabetes") {
		t.Errorf("prompt missing health context: %q", p.User)
	}
	assertDirEmpty(t, dir)
}

func TestIntegration_AnalyzeAPIErrors(t *testing.T) {
	tests := []struct {
		name      string
		image     []byte
		ocrErr    error
		agentErr  error
		maxUpload int64
		status    int
		stage     string
	}{
		{name: "missing image", image: nil, status: http.StatusBadRequest},
		{name: "unsupported format", image: []byte("GIF89a not really"), status: http.StatusUnsupportedMediaType},
		{name: "too large", image: labelPNG, maxUpload: 64, status: http.StatusRequestEntityTooLarge},
		{name: "decode failure", image: labelPNG, ocrErr: fmt.Errorf("%w: corrupt", domain.ErrDecode), status: http.StatusUnprocessableEntity, stage: "extracting"},
		{name: "ocr unavailable", image: labelPNG, ocrErr: domain.ErrBackendUnavailable, status: http.StatusServiceUnavailable, stage: "extracting"},
		{name: "auth failure", image: labelPNG, agentErr: domain.ErrAuthentication, status: http.StatusBadGateway, stage: "querying"},
		{name: "quota", image: labelPNG, agentErr: domain.ErrQuotaExceeded, status: http.StatusTooManyRequests, stage: "querying"},
		{name: "service unavailable", image: labelPNG, agentErr: domain.ErrServiceUnavailable, status: http.StatusBadGateway, stage: "querying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxUpload := tt.maxUpload
			if maxUpload == 0 {
				maxUpload = 1 << 20
			}
			ex := &recordingExtractor{text: "water", err: tt.ocrErr}
			ag := &stubAgent{out: "fine", err: tt.agentErr}
			srv, dir := newTestServer(t, ex, ag, maxUpload)

			resp := postAnalyze(t, srv, "/api/analyze", tt.image, "")
			if resp.StatusCode != tt.status {
				body, _ := io.ReadAll(resp.Body)
				t.Fatalf("status %d, want %d: %s", resp.StatusCode, tt.status, body)
			}

			var got struct {
				Error string `json:"error"`
				Stage string `json:"stage"`
			}
			decodeJSON(t, resp, &got)
			if got.Error == "" {
				t.Errorf("missing error message")
			}
			if got.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", got.Stage, tt.stage)
			}
			assertDirEmpty(t, dir)
		})
	}
}

func TestIntegration_AnalyzeAcceptsImageAtLimit(t *testing.T) {
	// Trailing bytes after IEND still decode as a PNG.
	img := append(append([]byte{}, labelPNG...), make([]byte, 4096-len(labelPNG))...)

	ex := &recordingExtractor{text: "water"}
	srv, _ := newTestServer(t, ex, &stubAgent{out: "fine"}, int64(len(img)))

	resp := postAnalyze(t, srv, "/api/analyze", img, "")
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d, want 200: %s", resp.StatusCode, body)
	}

	resp = postAnalyze(t, srv, "/api/analyze", append(img, 0), "")
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d for an image one byte over the limit, want 413", resp.StatusCode)
	}
}

func TestIntegration_AnalyzeDecodeFailureSkipsAgent(t *testing.T) {
	ex := &recordingExtractor{err: domain.ErrDecode}
	ag := &stubAgent{out: "unused"}
	srv, _ := newTestServer(t, ex, ag, 1<<20)

	resp := postAnalyze(t, srv, "/api/analyze", labelPNG, "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", resp.StatusCode)
	}
	if p := ag.LastPrompt(); p.User != "" {
		t.Errorf("agent was invoked after a decode failure")
	}
}

func TestIntegration_AnalyzePage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ex := &recordingExtractor{text: "sugar"}
	ag := &stubAgent{out: "Try healthier alternatives."}
	srv, _ := newTestServer(t, ex, ag, 1<<20)

	resp := postAnalyze(t, srv, "/analyze", labelPNG, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, "🌟 Rating: 4 / 5 🌟") {
		t.Errorf("page missing rating banner")
	}
	if !strings.Contains(page, "🍏 <strong>healthier alternatives</strong> 🍎") {
		t.Errorf("page missing rendered highlight: %s", page)
	}
}

func TestIntegration_AnalyzePageError(t *testing.T) {
	ex := &recordingExtractor{text: "sugar"}
	ag := &stubAgent{err: domain.ErrQuotaExceeded}
	srv, _ := newTestServer(t, ex, ag, 1<<20)

	resp := postAnalyze(t, srv, "/analyze", labelPNG, "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "rate limited") {
		t.Errorf("page missing error message: %s", body)
	}
	if strings.Contains(string(body), "Overall Rating") {
		t.Errorf("error page must not contain a partial result")
	}
}
