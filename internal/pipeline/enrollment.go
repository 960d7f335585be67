package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"

	"github.com/facegate/facegate/internal/detect"
	"github.com/facegate/facegate/internal/imaging"
	"github.com/facegate/facegate/internal/recognize"
)

// ErrValidation marks a registration rejected before any state change:
// missing fields or no frames to learn from.
var ErrValidation = errors.New("invalid registration")

// ErrInsufficientSamples is returned when too few frames contained a
// usable face. Neither the store nor the model is touched.
var ErrInsufficientSamples = errors.New("not enough usable face samples")

// UserStore is the slice of the store the enrollment flow needs.
type UserStore interface {
	CreateUser(ctx context.Context, name, employeeID string) (int64, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Enroller registers new people: it harvests face crops from a burst
// of frames, creates the identity and trains the classifier on them.
// Registrations are serialized so two concurrent enrollments cannot
// interleave their model updates and artifact writes.
type Enroller struct {
	mu         sync.Mutex
	detector   FaceDetector
	model      *recognize.Model
	users      UserStore
	minSamples int
}

// NewEnroller wires the enrollment flow together. minSamples is the
// number of usable face crops a registration must produce to proceed.
func NewEnroller(detector FaceDetector, model *recognize.Model, users UserStore, minSamples int) *Enroller {
	return &Enroller{
		detector:   detector,
		model:      model,
		users:      users,
		minSamples: minSamples,
	}
}

// Register enrolls a new person from a burst of frames. The cheap
// checks run first: field validation, then the face harvest and the
// minimum-sample gate. Only once the samples are known to be usable is
// the user row created, so a failed registration never leaves an
// identity behind; if training or persisting the model fails after the
// row exists, the row is rolled back.
func (e *Enroller) Register(ctx context.Context, frames []image.Image, name, employeeID string) (int64, error) {
	name = strings.TrimSpace(name)
	employeeID = strings.TrimSpace(employeeID)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if employeeID == "" {
		return 0, fmt.Errorf("%w: employee id is required", ErrValidation)
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w: no frames captured", ErrValidation)
	}

	crops := e.harvest(frames)
	if len(crops) < e.minSamples {
		return 0, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, len(crops), e.minSamples)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	userID, err := e.users.CreateUser(ctx, name, employeeID)
	if err != nil {
		return 0, err
	}

	samples := make([]recognize.TrainingSample, len(crops))
	for i, crop := range crops {
		samples[i] = recognize.TrainingSample{Region: crop, Label: userID}
	}
	if err := e.model.Update(samples); err != nil {
		e.rollback(ctx, userID)
		return 0, fmt.Errorf("train model: %w", err)
	}
	e.model.SetName(userID, name)
	if err := e.model.Save(); err != nil {
		e.rollback(ctx, userID)
		return 0, fmt.Errorf("persist model: %w", err)
	}
	return userID, nil
}

// harvest extracts one face crop per frame, keeping the largest face
// in each. Frames without a detectable face contribute nothing.
func (e *Enroller) harvest(frames []image.Image) []*image.Gray {
	var crops []*image.Gray
	for _, frame := range frames {
		if frame == nil {
			continue
		}
		gray := imaging.ToGray(frame)
		rect, ok := detect.Largest(e.detector.Detect(gray))
		if !ok {
			continue
		}
		crops = append(crops, imaging.Crop(gray, rect))
	}
	return crops
}

func (e *Enroller) rollback(ctx context.Context, userID int64) {
	if err := e.users.DeleteUser(ctx, userID); err != nil {
		log.Printf("failed to roll back user %d after enrollment error: %v", userID, err)
	}
}
