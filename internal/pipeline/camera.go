// Package pipeline connects the camera feed to the detector, the
// classifier and the attendance store. It owns the two flows of the
// system: continuous recognition of whoever stands in front of the
// camera, and the multi-frame enrollment of a new person.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/imaging"
)

// FrameSource yields camera frames. ReadFrame returns nil when no
// frame is currently available; callers decide whether to wait or
// move on.
type FrameSource interface {
	ReadFrame() image.Image
}

// FrameCell holds the most recent camera frame. The camera feed
// overwrites it on every upload and readers take an isolated snapshot,
// so a slow recognition pass never blocks ingestion and never observes
// a frame mutated under it.
type FrameCell struct {
	mu    sync.Mutex
	frame image.Image
}

// Set replaces the current frame.
func (c *FrameCell) Set(frame image.Image) {
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
}

// ReadFrame returns a copy of the current frame, or nil when no frame
// has arrived yet.
func (c *FrameCell) ReadFrame() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return nil
	}
	return imaging.Clone(c.frame)
}

// Sampler collects a burst of frames for an enrollment session.
type Sampler struct {
	source   FrameSource
	count    int
	interval time.Duration
}

// NewSampler builds a sampler reading from the given source with the
// configured burst size and spacing.
func NewSampler(source FrameSource, cfg config.CaptureConfig) *Sampler {
	return &Sampler{
		source:   source,
		count:    cfg.SampleCount,
		interval: cfg.SampleInterval,
	}
}

// Collect gathers up to the configured number of frames, spaced by the
// sample interval. Ticks where the source has no frame are skipped; a
// dead source makes Collect give up after a bounded number of attempts
// rather than spin forever. Cancelling the context returns the frames
// gathered so far along with the context error.
func (s *Sampler) Collect(ctx context.Context) ([]image.Image, error) {
	frames := make([]image.Image, 0, s.count)
	attempts := s.count * 3

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; i < attempts && len(frames) < s.count; i++ {
		if frame := s.source.ReadFrame(); frame != nil {
			frames = append(frames, frame)
		}
		if len(frames) == s.count {
			break
		}
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		case <-ticker.C:
		}
	}
	return frames, nil
}
