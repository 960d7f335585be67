package pipeline

import (
	"context"
	"log"
	"sync"
	"time"
)

// LatestCell publishes the most recent recognition results to the web
// layer. Readers get the slice as-is; results are never mutated after
// being stored.
type LatestCell struct {
	mu      sync.RWMutex
	results []Recognition
	at      time.Time
}

// Set replaces the published results.
func (c *LatestCell) Set(results []Recognition) {
	c.mu.Lock()
	c.results = results
	c.at = time.Now()
	c.mu.Unlock()
}

// Get returns the published results and when they were produced. The
// zero time means no recognition pass has produced results yet.
func (c *LatestCell) Get() ([]Recognition, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.results, c.at
}

// Run drives the continuous recognition loop until the context is
// cancelled. Ticks are strictly sequential: a pass that takes longer
// than the interval simply delays the next one, so at most one
// detection and classification runs at a time.
func (p *Pipeline) Run(ctx context.Context, source FrameSource, interval time.Duration, latest *LatestCell) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := source.ReadFrame()
		if frame == nil {
			continue
		}
		results, err := p.ProcessFrame(ctx, frame)
		if err != nil {
			log.Printf("recognition pass failed: %v", err)
			continue
		}
		// Faceless frames publish too, so the overlay clears once the
		// subject leaves instead of showing the last match forever.
		if latest != nil {
			latest.Set(results)
		}
	}
}
