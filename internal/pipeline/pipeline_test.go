package pipeline

import (
	"context"
	"image"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
)

// stubDetector reports a fixed set of face regions for every frame.
type stubDetector struct {
	rects []image.Rectangle
}

func (d *stubDetector) Detect(frame *image.Gray) []image.Rectangle {
	return d.rects
}

// fullFrameDetector treats the whole frame as one face.
type fullFrameDetector struct{}

func (fullFrameDetector) Detect(frame *image.Gray) []image.Rectangle {
	return []image.Rectangle{frame.Bounds()}
}

func facePattern(seed int64, size int) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	g := image.NewGray(image.Rect(0, 0, size, size))
	for i := range g.Pix {
		g.Pix[i] = uint8(rng.Intn(200))
	}
	return g
}

// brightened simulates another frame of the same subject under
// different lighting; the classifier sees it as a near-zero distance.
func brightened(src *image.Gray, delta uint8) *image.Gray {
	dst := image.NewGray(src.Bounds())
	for i, v := range src.Pix {
		if int(v)+int(delta) > 255 {
			dst.Pix[i] = 255
		} else {
			dst.Pix[i] = v + delta
		}
	}
	return dst
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

// enrollSubject trains the model directly with frames of one subject
// and returns the user id backing the label.
func enrollSubject(t *testing.T, model *recognize.Model, s *store.Store, name, employeeID string, seed int64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateUser(ctx, name, employeeID)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	base := facePattern(seed, 120)
	samples := make([]recognize.TrainingSample, 5)
	for i := range samples {
		samples[i] = recognize.TrainingSample{Region: brightened(base, uint8(i*3)), Label: id}
	}
	if err := model.Update(samples); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	model.SetName(id, name)
	return id
}

func TestProcessFrame_NoFaces(t *testing.T) {
	model, s := testFixtures(t)
	p := NewPipeline(&stubDetector{}, model, s, 65)

	results, err := p.ProcessFrame(context.Background(), facePattern(1, 120))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if results != nil {
		t.Errorf("expected no results for a faceless frame, got %v", results)
	}

	events, _ := s.GetRecentEvents(context.Background(), 10)
	if len(events) != 0 {
		t.Errorf("faceless frame wrote %d attendance events", len(events))
	}
}

func TestProcessFrame_NilFrame(t *testing.T) {
	model, s := testFixtures(t)
	p := NewPipeline(fullFrameDetector{}, model, s, 65)

	results, err := p.ProcessFrame(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("ProcessFrame(nil) = %v, %v, want nil, nil", results, err)
	}
}

func TestProcessFrame_KnownFaceLogsAttendance(t *testing.T) {
	model, s := testFixtures(t)
	ctx := context.Background()
	id := enrollSubject(t, model, s, "Alice", "EMP-001", 100)

	p := NewPipeline(fullFrameDetector{}, model, s, 65)
	probe := brightened(facePattern(100, 120), 30)

	results, err := p.ProcessFrame(ctx, probe)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	rec := results[0]
	if !rec.Known || rec.UserID != id || rec.Name != "Alice" {
		t.Errorf("unexpected recognition %+v", rec)
	}
	if !strings.Contains(rec.Message, "Welcome") {
		t.Errorf("first sighting message = %q", rec.Message)
	}

	events, _ := s.GetRecentEvents(ctx, 10)
	if len(events) != 1 || events[0].UserID != id {
		t.Fatalf("expected 1 event for user %d, got %v", id, events)
	}

	// A second sighting the same day is reported but not re-logged.
	results, _ = p.ProcessFrame(ctx, probe)
	if !strings.Contains(results[0].Message, "already logged") {
		t.Errorf("repeat sighting message = %q", results[0].Message)
	}
	events, _ = s.GetRecentEvents(ctx, 10)
	if len(events) != 1 {
		t.Errorf("repeat sighting created extra events: %d", len(events))
	}
}

func TestProcessFrame_NameFallsBackToStore(t *testing.T) {
	model, s := testFixtures(t)
	ctx := context.Background()

	// Trained label with no entry in the label map; the user row still
	// carries the name.
	id, _ := s.CreateUser(ctx, "Alice", "EMP-001")
	base := facePattern(100, 120)
	samples := make([]recognize.TrainingSample, 5)
	for i := range samples {
		samples[i] = recognize.TrainingSample{Region: brightened(base, uint8(i*3)), Label: id}
	}
	if err := model.Update(samples); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	p := NewPipeline(fullFrameDetector{}, model, s, 65)
	results, err := p.ProcessFrame(ctx, brightened(base, 30))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results) != 1 || !results[0].Known || results[0].Name != "Alice" {
		t.Errorf("expected store name fallback, got %+v", results)
	}
}

func TestProcessFrame_StrangerStaysUnknown(t *testing.T) {
	model, s := testFixtures(t)
	ctx := context.Background()
	enrollSubject(t, model, s, "Alice", "EMP-001", 100)

	// Tight threshold so a different texture cannot sneak under it.
	p := NewPipeline(fullFrameDetector{}, model, s, 1)

	results, err := p.ProcessFrame(ctx, facePattern(999, 120))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Known || results[0].Name != UnknownName {
		t.Errorf("stranger recognized as %+v", results[0])
	}

	events, _ := s.GetRecentEvents(ctx, 10)
	if len(events) != 0 {
		t.Errorf("unknown face wrote %d attendance events", len(events))
	}
}

func TestProcessFrame_UntrainedModel(t *testing.T) {
	model, s := testFixtures(t)
	p := NewPipeline(fullFrameDetector{}, model, s, 65)

	results, err := p.ProcessFrame(context.Background(), facePattern(5, 120))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results) != 1 || results[0].Known {
		t.Errorf("untrained model produced %+v", results)
	}
}

func TestProcessFrame_MultipleFaces(t *testing.T) {
	model, s := testFixtures(t)
	enrollSubject(t, model, s, "Alice", "EMP-001", 100)

	detector := &stubDetector{rects: []image.Rectangle{
		image.Rect(0, 0, 60, 60),
		image.Rect(60, 60, 120, 120),
	}}
	p := NewPipeline(detector, model, s, 65)

	results, err := p.ProcessFrame(context.Background(), facePattern(100, 120))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected one result per detected face, got %d", len(results))
	}
}
