package capture

import (
	"sync"
	"time"
)

// statsWindow is how many recent publish times feed the measured rate.
const statsWindow = 30

// Stats summarizes a capture loop's progress.
type Stats struct {
	Published       uint64  `json:"published"`
	DecodeFailures  uint64  `json:"decode_failures"`
	CaptureFailures uint64  `json:"capture_failures"`
	MeasuredFPS     float64 `json:"measured_fps"`
}

type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
	times []time.Time
}

func (r *statsRecorder) published(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Published++
	r.times = append(r.times, at)
	if len(r.times) > statsWindow {
		r.times = r.times[len(r.times)-statsWindow:]
	}
}

func (r *statsRecorder) decodeFailed() {
	r.mu.Lock()
	r.stats.DecodeFailures++
	r.mu.Unlock()
}

func (r *statsRecorder) captureFailed() {
	r.mu.Lock()
	r.stats.CaptureFailures++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.MeasuredFPS = measuredFPS(r.times)
	return s
}

// measuredFPS is the mean publish rate over the given timestamps.
func measuredFPS(times []time.Time) float64 {
	if len(times) < 2 {
		return 0
	}
	span := times[len(times)-1].Sub(times[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(times)-1) / span
}
