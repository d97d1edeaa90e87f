// Package preview reads the capture slot on a fixed cadence and turns it into
// something a display surface can show: the latest frame and a status line.
package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/logger"
)

// DefaultInterval is the refresh period, roughly 20 Hz.
const DefaultInterval = 50 * time.Millisecond

// InitializingText is shown until the first frame is published.
const InitializingText = "Initializing..."

// Status describes what the preview is currently showing.
type Status struct {
	Text   string    `json:"text"`
	Ready  bool      `json:"ready"`
	Active bool      `json:"active"`
	Seq    uint64    `json:"seq"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	At     time.Time `json:"captured_at,omitempty"`
	FPS    float64   `json:"fps"`
	Scale  float64   `json:"scale"`
}

// Refresher polls a Slot. It never blocks and never writes to the Slot.
type Refresher struct {
	control  *capture.Control
	slot     *capture.Slot
	interval time.Duration
}

// New creates a refresher. A non-positive interval selects DefaultInterval.
func New(control *capture.Control, slot *capture.Slot, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		control:  control,
		slot:     slot,
		interval: interval,
	}
}

// Interval returns the refresh period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Tick reads the latest frame. ok is false once the stream is no longer
// active, after which nothing more should be rendered. frame is nil while
// no frame has been published yet.
func (r *Refresher) Tick() (frame *capture.Frame, status Status, ok bool) {
	fps, scale := r.control.Settings()
	status = Status{Text: InitializingText, FPS: fps, Scale: scale}

	if !r.control.Active() {
		status.Text = "Stopped"
		return nil, status, false
	}
	status.Active = true

	frame = r.slot.Load()
	if frame == nil {
		return nil, status, true
	}

	status.Ready = true
	status.Seq = frame.Seq
	status.Width = frame.Width()
	status.Height = frame.Height()
	status.At = frame.CapturedAt
	status.Text = StatusLine(frame)
	return frame, status, true
}

// StatusLine formats the frame counter, capture time and dimensions.
func StatusLine(f *capture.Frame) string {
	return fmt.Sprintf("Frame %d - %s - %dx%d", f.Seq, f.CapturedAt.Format("15:04:05"), f.Width(), f.Height())
}

// RenderFunc receives each tick's result. frame may be nil.
type RenderFunc func(frame *capture.Frame, status Status)

// Run calls render every interval until the stream stops or ctx is
// cancelled. Frames are only passed on when their sequence number changes;
// status is passed on every tick.
func (r *Refresher) Run(ctx context.Context, render RenderFunc) {
	log := logger.WithComponent("preview")
	log.Debug().Dur("interval", r.interval).Msg("Preview refresher started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Preview refresher cancelled")
			return
		case <-r.control.Done():
			_, status, _ := r.Tick()
			render(nil, status)
			log.Debug().Msg("Preview refresher stopped")
			return
		case <-ticker.C:
			frame, status, ok := r.Tick()
			if !ok {
				render(nil, status)
				return
			}
			if frame != nil && frame.Seq == lastSeq {
				frame = nil
			} else if frame != nil {
				lastSeq = frame.Seq
			}
			render(frame, status)
		}
	}
}
