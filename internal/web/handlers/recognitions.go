package handlers

import (
	"net/http"
	"time"

	"github.com/facegate/facegate/internal/pipeline"
)

// RecognitionsHandler exposes the output of the live recognition loop.
type RecognitionsHandler struct {
	latest *pipeline.LatestCell
}

// NewRecognitionsHandler creates a recognitions handler.
func NewRecognitionsHandler(latest *pipeline.LatestCell) *RecognitionsHandler {
	return &RecognitionsHandler{latest: latest}
}

// LatestResponse is the JSON shape of GET /recognitions/latest.
type LatestResponse struct {
	Results   []pipeline.Recognition `json:"results"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
}

// Latest handles GET /recognitions/latest. Before the first face is
// seen, the result list is empty and updated_at is omitted.
func (h *RecognitionsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	results, at := h.latest.Get()

	resp := LatestResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []pipeline.Recognition{}
	}
	if !at.IsZero() {
		resp.UpdatedAt = at.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, resp)
}
