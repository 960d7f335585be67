package handlers

import (
	"errors"
	"image"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/facegate/facegate/internal/imaging"
	"github.com/facegate/facegate/internal/pipeline"
	"github.com/facegate/facegate/internal/store"
)

// maxRegisterBytes caps a whole registration upload.
const maxRegisterBytes = 64 << 20 // 64 MiB

// RegisterHandler enrolls new people. Frames either arrive with the
// request as multipart files or are sampled live from the camera feed.
type RegisterHandler struct {
	enroller *pipeline.Enroller
	sampler  *pipeline.Sampler
}

// NewRegisterHandler creates a registration handler. sampler may be
// nil, in which case registrations must upload their own frames.
func NewRegisterHandler(enroller *pipeline.Enroller, sampler *pipeline.Sampler) *RegisterHandler {
	return &RegisterHandler{enroller: enroller, sampler: sampler}
}

// Register handles POST /register. The multipart form carries the
// person's name, employee id and optionally a set of "frames" files;
// without uploaded frames the handler captures a burst from the live
// camera feed instead.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRegisterBytes); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := r.FormValue("name")
	employeeID := r.FormValue("employee_id")

	frames, err := h.gatherFrames(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := h.enroller.Register(r.Context(), frames, name, employeeID)
	if err != nil {
		h.respondRegisterError(w, name, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"name":    name,
	})
}

func (h *RegisterHandler) gatherFrames(r *http.Request) ([]image.Image, error) {
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["frames"]
	}

	if len(files) == 0 {
		if h.sampler == nil {
			return nil, errors.New("no frames uploaded and live capture is not available")
		}
		frames, err := h.sampler.Collect(r.Context())
		if err != nil {
			return nil, errors.New("live capture interrupted")
		}
		return frames, nil
	}

	frames := make([]image.Image, 0, len(files))
	for _, header := range files {
		frame, err := decodeUpload(header)
		if err != nil {
			// A single bad frame does not sink the registration; the
			// minimum-sample gate catches uploads with too few usable ones.
			log.Printf("skipping undecodable frame %s: %v", sanitizeForLog(header.Filename), err)
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodeUpload(header *multipart.FileHeader) (image.Image, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(data)
}

func (h *RegisterHandler) respondRegisterError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrInsufficientSamples):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrDuplicateEmployee):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("registration failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "registration failed")
	}
}
