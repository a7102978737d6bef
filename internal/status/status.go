// Package status tracks how far a sampling run has got and periodically logs
// it, which matters for deep-read runs over large trees.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/pkg/utils"
)

// Progress tracks completion of a counted quantity.
type Progress struct {
	Current    int64          `json:"current"`
	Total      int64          `json:"total"`
	Unit       string         `json:"unit"`
	Percentage float64        `json:"percentage"`
	Rate       float64        `json:"rate,omitempty"` // units per second
	ETA        *time.Duration `json:"eta,omitempty"`

	lastUpdate  time.Time
	lastCurrent int64
}

// Update records a new position observed at now.
func (p *Progress) Update(current, total int64, now time.Time) {
	p.Current = current
	p.Total = total

	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}

	if !p.lastUpdate.IsZero() && current > p.lastCurrent {
		elapsed := now.Sub(p.lastUpdate).Seconds()
		if elapsed > 0 {
			p.Rate = float64(current-p.lastCurrent) / elapsed
		}

		if p.Rate > 0 && total > current {
			remaining := float64(total - current)
			eta := time.Duration(remaining / p.Rate * float64(time.Second))
			p.ETA = &eta
		}
	}
	if total <= current {
		p.ETA = nil
	}

	p.lastUpdate = now
	p.lastCurrent = current
}

// Snapshot is a point-in-time copy of a Tracker.
type Snapshot struct {
	Files   Progress      `json:"files"`
	Active  int           `json:"active"`
	Failed  int           `json:"failed"`
	Bytes   int64         `json:"bytes"`
	Samples int64         `json:"samples"`
	Elapsed time.Duration `json:"elapsed"`
}

// Tracker counts files as they finish. It implements dispatch.Observer.
type Tracker struct {
	mu      sync.Mutex
	files   Progress
	active  int
	failed  int
	bytes   int64
	samples int64
	started time.Time

	logger *utils.StructuredLogger
	now    func() time.Time
}

// NewTracker creates a tracker for a run of total files.
func NewTracker(total int, logger *utils.StructuredLogger) *Tracker {
	if logger == nil {
		logger = utils.NopLogger()
	}
	t := &Tracker{
		files:  Progress{Total: int64(total), Unit: "files"},
		logger: logger.WithComponent("status"),
		now:    time.Now,
	}
	t.started = t.now()
	return t
}

// OnFileStart implements dispatch.Observer.
func (t *Tracker) OnFileStart(string) {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()
}

// OnFileDone implements dispatch.Observer.
func (t *Tracker) OnFileDone(_ string, res sampler.Result, err error, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	if err != nil {
		t.failed++
	} else {
		t.bytes += res.Size
		t.samples += res.Samples
	}
	t.files.Update(t.files.Current+1, t.files.Total, t.now())
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Files:   t.files,
		Active:  t.active,
		Failed:  t.failed,
		Bytes:   t.bytes,
		Samples: t.samples,
		Elapsed: t.now().Sub(t.started),
	}
	if t.files.ETA != nil {
		eta := *t.files.ETA
		s.Files.ETA = &eta
	}
	return s
}

// Log writes the current state at info level.
func (t *Tracker) Log() {
	s := t.Snapshot()
	fields := map[string]interface{}{
		"done":    s.Files.Current,
		"total":   s.Files.Total,
		"percent": int(s.Files.Percentage),
		"active":  s.Active,
		"failed":  s.Failed,
		"bytes":   utils.FormatBytes(s.Bytes),
		"elapsed": s.Elapsed.Round(time.Second).String(),
	}
	if s.Files.ETA != nil {
		fields["eta"] = s.Files.ETA.Round(time.Second).String()
	}
	t.logger.Info("sampling progress", fields)
}

// Run logs progress every interval until ctx is done. A non-positive
// interval disables reporting.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Log()
		}
	}
}
