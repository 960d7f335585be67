package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/config"
)

// RemoteMirror replicates attendance events to a Supabase-style REST
// endpoint. Writes are one-way and unauthenticated beyond the API key;
// the caller treats every push as best effort.
type RemoteMirror struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteMirror builds a mirror client for the configured endpoint.
func NewRemoteMirror(cfg config.MirrorConfig) *RemoteMirror {
	return &RemoteMirror{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// mirrorEvent is the wire format for a replicated event. The event key
// lets the remote side deduplicate if the same event ever arrives
// twice.
type mirrorEvent struct {
	EventKey  string `json:"event_key"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// Push replicates a single event. A non-2xx response or transport
// failure is returned as an error; the caller logs it and moves on.
func (m *RemoteMirror) Push(evt Event) error {
	payload := mirrorEvent{
		EventKey:  uuid.NewString(),
		UserID:    evt.UserID,
		Name:      evt.Name,
		Timestamp: evt.Timestamp.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mirror event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("apikey", m.apiKey)
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mirror request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mirror rejected event (status %d): %s", resp.StatusCode, string(msg))
	}
	return nil
}
