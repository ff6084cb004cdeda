package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aistudio-dev/aistudio/db"
	"github.com/aistudio-dev/aistudio/internal/auth"
	"github.com/aistudio-dev/aistudio/internal/config"
	"github.com/aistudio-dev/aistudio/internal/handlers"
	"github.com/aistudio-dev/aistudio/internal/pipeline"
	"github.com/aistudio-dev/aistudio/internal/router"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeGenerator pins pipeline outcomes, counts invocations, and records the
// staged input path it was handed.
type fakeGenerator struct {
	calls     int
	err       error
	out       string
	lastInput string
}

func (f *fakeGenerator) Generate(ctx context.Context, inputPath, prompt string) (pipeline.Result, error) {
	f.calls++
	f.lastInput = inputPath
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	out := f.out
	if out == "" {
		out = "generated-1700000000000-test.png"
	}
	return pipeline.Result{OutputPath: out, Params: pipeline.Params{Width: 800}}, nil
}

func setupRouter(t *testing.T, fake *fakeGenerator) (*gin.Engine, string) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.DB = gdb

	if err := db.MigrateDatabase(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	if err := auth.Init("test-secret"); err != nil {
		t.Fatalf("init token service: %v", err)
	}

	uploadsDir := t.TempDir()
	handlers.ConfigureGenerations(fake)

	cfg := &config.Config{
		UploadsDir:     uploadsDir,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		AllowedOrigins: []string{"http://localhost:5173"},
	}

	return router.NewRouter(cfg), uploadsDir
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

func signupUser(t *testing.T, r *gin.Engine, email, password string) (token, userID string) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	}, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	token, _ = body["token"].(string)
	user, _ := body["user"].(map[string]interface{})
	userID, _ = user["id"].(string)

	if token == "" || userID == "" {
		t.Fatalf("signup response missing token or user ID: %s", w.Body.String())
	}

	return token, userID
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 120, G: 80, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test PNG: %v", err)
	}
	return buf.Bytes()
}

type generationRequest struct {
	fileData []byte
	fileName string
	noFile   bool
	prompt   string
	style    string
}

func doGenerate(t *testing.T, r *gin.Engine, token string, req generationRequest) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if !req.noFile {
		name := req.fileName
		if name == "" {
			name = "input.png"
		}
		part, err := writer.CreateFormFile("image", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(req.fileData); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}

	if err := writer.WriteField("prompt", req.prompt); err != nil {
		t.Fatalf("write prompt field: %v", err)
	}
	if err := writer.WriteField("style", req.style); err != nil {
		t.Fatalf("write style field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodPost, "/generations", &buf)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)
	return w
}
