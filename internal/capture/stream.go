package capture

import (
	"context"
	"time"

	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/bryanchriswhite/questcap/internal/output"
)

// FrameWriter saves screenshots straight to local files. *device.Session implements it.
type FrameWriter interface {
	CaptureFrame(ctx context.Context, localPath string) error
	CleanupRemote(ctx context.Context)
}

// Streamer is the headless live stream: every cycle saves one screenshot as
// a numbered file instead of publishing a decoded frame.
type Streamer struct {
	dev FrameWriter
	dir string
	fps float64

	// Progress, if set, is called after each saved frame.
	Progress func(index int, path string, at time.Time)
}

// NewStreamer creates a streamer writing frame_NNNNNN.png files into dir.
func NewStreamer(dev FrameWriter, dir string, fps float64) *Streamer {
	return &Streamer{
		dev: dev,
		dir: dir,
		fps: EffectiveFPS(fps),
	}
}

// Run streams until ctx is cancelled and returns the number of frames saved.
// A failed screenshot is logged and retried on the next cycle; an unusable
// device ends the stream with an error. Remote temp files are removed on exit.
func (s *Streamer) Run(ctx context.Context) (int, error) {
	log := logger.WithComponent("live-stream")
	defer s.dev.CleanupRemote(ctx)

	period := time.Duration(float64(time.Second) / s.fps)
	log.Info().Float64("fps", s.fps).Str("dir", s.dir).Msg("Live stream started")

	index := 0
	for ctx.Err() == nil {
		start := time.Now()
		path := output.FramePath(s.dir, index)

		err := s.dev.CaptureFrame(ctx, path)
		switch {
		case err == nil:
			if s.Progress != nil {
				s.Progress(index, path, start)
			}
			log.Debug().Int("frame", index).Str("path", path).Msg("Frame captured")
			index++
		case ctx.Err() != nil:
			// Interrupted mid-capture.
		case device.IsCommandFailure(err):
			log.Warn().Err(err).Int("frame", index).Msg("Frame capture failed")
		default:
			return index, err
		}

		if !sleep(ctx, period-time.Since(start)) {
			break
		}
	}

	log.Info().Int("frames", index).Msg("Live stream stopped")
	return index, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
