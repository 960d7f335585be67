package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/facegate/facegate/internal/imaging"
	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
)

// UnknownName is the display name reported for faces the classifier
// cannot match with enough confidence.
const UnknownName = "Unknown"

// FaceDetector locates face regions in a grayscale frame.
type FaceDetector interface {
	Detect(frame *image.Gray) []image.Rectangle
}

// AttendanceLog is the slice of the store the recognition flow needs.
type AttendanceLog interface {
	LogAttendance(ctx context.Context, userID int64, name string) (store.LogStatus, error)
	UserName(ctx context.Context, id int64) (string, error)
}

// Recognition is the outcome for one detected face in one frame.
type Recognition struct {
	Region  image.Rectangle `json:"region"`
	UserID  int64           `json:"user_id,omitempty"`
	Name    string          `json:"name"`
	Score   float64         `json:"score"`
	Known   bool            `json:"known"`
	Message string          `json:"message"`
}

// Pipeline runs the continuous recognition flow: detect faces in a
// frame, classify each one and log attendance for confident matches.
type Pipeline struct {
	detector  FaceDetector
	model     *recognize.Model
	log       AttendanceLog
	threshold float64
}

// NewPipeline wires the recognition flow together. Matches with a
// distance score above the threshold are reported as unknown.
func NewPipeline(detector FaceDetector, model *recognize.Model, attendance AttendanceLog, threshold float64) *Pipeline {
	return &Pipeline{
		detector:  detector,
		model:     model,
		log:       attendance,
		threshold: threshold,
	}
}

// ProcessFrame runs one recognition pass over a single frame. Frames
// with no detectable face produce no results and touch nothing; a
// confident match logs attendance, where the store's once-per-day
// deduplication decides whether this sighting becomes a new event.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image) ([]Recognition, error) {
	if frame == nil {
		return nil, nil
	}
	gray := imaging.ToGray(frame)

	rects := p.detector.Detect(gray)
	if len(rects) == 0 {
		return nil, nil
	}

	results := make([]Recognition, 0, len(rects))
	for _, rect := range rects {
		results = append(results, p.recognizeFace(ctx, gray, rect))
	}
	return results, nil
}

func (p *Pipeline) recognizeFace(ctx context.Context, gray *image.Gray, rect image.Rectangle) Recognition {
	rec := Recognition{Region: rect, Name: UnknownName, Message: "Face not recognized"}

	label, score, ok := p.model.Classify(imaging.Crop(gray, rect))
	if !ok {
		return rec
	}
	rec.Score = score
	if score > p.threshold {
		return rec
	}

	name, ok := p.model.Name(label)
	if !ok {
		// Label map out of step with the sample bank; the user row is
		// still authoritative for the name.
		stored, err := p.log.UserName(ctx, label)
		if err != nil {
			log.Printf("no name for label %d: %v", label, err)
			return rec
		}
		name = stored
	}

	rec.UserID = label
	rec.Name = name
	rec.Known = true

	status, err := p.log.LogAttendance(ctx, label, name)
	if err != nil {
		log.Printf("attendance log failed for %s: %v", name, err)
		rec.Message = "Recognized, but attendance could not be saved"
		return rec
	}
	switch status {
	case store.StatusLogged:
		rec.Message = fmt.Sprintf("Welcome, %s!", name)
	case store.StatusAlreadyLogged:
		rec.Message = fmt.Sprintf("%s already logged today", name)
	}
	return rec
}
