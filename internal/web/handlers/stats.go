package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
)

// StatsHandler serves dashboard statistics.
type StatsHandler struct {
	store *store.Store
	model *recognize.Model
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(s *store.Store, model *recognize.Model) *StatsHandler {
	return &StatsHandler{store: s, model: model}
}

// StatsResponse is the JSON shape of GET /stats.
type StatsResponse struct {
	TotalUsers       int  `json:"total_users"`
	TodaysAttendance int  `json:"todays_attendance"`
	ModelTrained     bool `json:"model_trained"`
	TrainingSamples  int  `json:"training_samples"`
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		log.Printf("stats query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		TotalUsers:       stats.TotalUsers,
		TodaysAttendance: stats.TodaysAttendance,
		ModelTrained:     h.model.Trained(),
		TrainingSamples:  h.model.SampleCount(),
	})
}

// EventsHandler serves the attendance event feed.
type EventsHandler struct {
	store *store.Store
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(s *store.Store) *EventsHandler {
	return &EventsHandler{store: s}
}

// EventResponse is the JSON shape of one attendance event.
type EventResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Synced    bool   `json:"synced"`
}

// List handles GET /events?limit=N, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	events, err := h.store.GetRecentEvents(r.Context(), limit)
	if err != nil {
		log.Printf("events query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, evt := range events {
		out = append(out, EventResponse{
			ID:        evt.ID,
			UserID:    evt.UserID,
			Name:      evt.Name,
			Timestamp: evt.Timestamp.Format(time.RFC3339),
			Synced:    evt.Synced,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
