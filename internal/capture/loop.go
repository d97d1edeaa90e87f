package capture

import (
	"context"
	"time"

	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/logger"
)

// Source produces raw screenshot bytes. *device.Session implements it.
type Source interface {
	CaptureStillBytes(ctx context.Context) ([]byte, error)
}

// Loop repeatedly captures, decodes and publishes frames while its Control
// is active.
type Loop struct {
	source  Source
	control *Control
	slot    *Slot
	stats   statsRecorder
	seq     uint64
}

// NewLoop creates a loop that publishes into slot.
func NewLoop(source Source, control *Control, slot *Slot) *Loop {
	return &Loop{
		source:  source,
		control: control,
		slot:    slot,
	}
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	return l.stats.snapshot()
}

// Run captures until the Control is stopped or ctx is cancelled. A bad
// frame is skipped; an error talking to the device stops the Control and is
// returned. The Control is always stopped when Run returns.
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("capture-loop")
	defer l.control.Stop()

	fps, scale := l.control.Settings()
	log.Info().Float64("fps", fps).Float64("scale", scale).Msg("Capture loop started")

	for l.control.Active() && ctx.Err() == nil {
		start := time.Now()
		fps, scale := l.control.Settings()

		if err := l.cycle(ctx, scale); err != nil {
			log.Error().Err(err).Msg("Capture session failed, stopping")
			return err
		}

		period := time.Duration(float64(time.Second) / fps)
		if !l.wait(ctx, period-time.Since(start)) {
			break
		}
	}

	log.Info().Uint64("frames", l.seq).Msg("Capture loop stopped")
	return nil
}

// cycle performs one capture. It only returns an error for session-level
// failures.
func (l *Loop) cycle(ctx context.Context, scale float64) error {
	log := logger.WithComponent("capture-loop")

	data, err := l.source.CaptureStillBytes(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if device.IsCommandFailure(err) {
			l.stats.captureFailed()
			log.Warn().Err(err).Msg("Screenshot failed, skipping frame")
			return nil
		}
		return err
	}

	img, err := Decode(FixLineEndings(data))
	if err != nil {
		l.stats.decodeFailed()
		log.Warn().Err(err).Msg("Error processing frame")
		return nil
	}
	img, err = Resize(img, scale)
	if err != nil {
		l.stats.decodeFailed()
		log.Warn().Err(err).Msg("Error processing frame")
		return nil
	}

	if !l.control.Active() {
		return nil
	}

	now := time.Now()
	l.seq++
	l.slot.Store(&Frame{Image: img, Seq: l.seq, CapturedAt: now})
	l.stats.published(now)
	log.Debug().Uint64("seq", l.seq).Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("Frame published")

	return nil
}

// wait sleeps for d unless stopped first. It reports whether the loop should continue.
func (l *Loop) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return l.control.Active() && ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-l.control.Done():
		return false
	}
}
