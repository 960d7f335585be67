package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/pipeline"
	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
)

// fullFrameDetector treats the whole frame as one face.
type fullFrameDetector struct{}

func (fullFrameDetector) Detect(frame *image.Gray) []image.Rectangle {
	return []image.Rectangle{frame.Bounds()}
}

// blindDetector never finds a face.
type blindDetector struct{}

func (blindDetector) Detect(frame *image.Gray) []image.Rectangle { return nil }

func facePattern(seed int64, size int) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	g := image.NewGray(image.Rect(0, 0, size, size))
	for i := range g.Pix {
		g.Pix[i] = uint8(rng.Intn(200))
	}
	return g
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func testFixtures(t *testing.T) (*recognize.Model, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	model := recognize.New(config.RecognizerConfig{
		ModelPath:  filepath.Join(dir, "trained_faces.gob"),
		LabelsPath: filepath.Join(dir, "labels.yaml"),
	})
	s, err := store.Open(config.StoreConfig{DBPath: filepath.Join(dir, "attendance.db")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return model, s
}

func testEnroller(t *testing.T, detector pipeline.FaceDetector) (*pipeline.Enroller, *store.Store) {
	t.Helper()
	model, s := testFixtures(t)
	return pipeline.NewEnroller(detector, model, s, 5), s
}

// registerForm builds a multipart registration request body with the
// given number of frame files of one synthetic subject.
func registerForm(t *testing.T, name, employeeID string, frameCount int, seed int64) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if name != "" {
		writer.WriteField("name", name)
	}
	if employeeID != "" {
		writer.WriteField("employee_id", employeeID)
	}
	for i := 0; i < frameCount; i++ {
		part, err := writer.CreateFormFile("frames", "frame.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(pngBytes(t, facePattern(seed, 120)))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Errorf("status = %d, want %d (body: %s)", recorder.Code, want, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := recorder.Header().Get("Content-Type"); got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", recorder.Body.String(), err)
	}
}
