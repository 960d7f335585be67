package handlers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/facegate/facegate/internal/imaging"
	"github.com/facegate/facegate/internal/pipeline"
)

// maxFrameBytes caps a single uploaded camera frame.
const maxFrameBytes = 10 << 20 // 10 MiB

// CameraHandler ingests camera frames pushed by the capture device.
type CameraHandler struct {
	frames *pipeline.FrameCell
}

// NewCameraHandler creates a camera handler writing into the given cell.
func NewCameraHandler(frames *pipeline.FrameCell) *CameraHandler {
	return &CameraHandler{frames: frames}
}

// Upload accepts one frame, either as a multipart "frame" field or as
// a raw image body, and makes it the current frame. Every upload
// overwrites the previous frame; there is no queue.
func (h *CameraHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, err := readFrameBytes(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	frame, err := imaging.Decode(data)
	if err != nil {
		log.Printf("rejected camera frame: %v", err)
		respondError(w, http.StatusBadRequest, "unsupported or corrupt image")
		return
	}

	h.frames.Set(frame)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func readFrameBytes(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFrameBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("frame")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
