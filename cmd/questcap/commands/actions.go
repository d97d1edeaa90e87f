package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/config"
	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/display"
	"github.com/bryanchriswhite/questcap/internal/output"
	"github.com/bryanchriswhite/questcap/internal/preview"
)

// actions runs capture operations against one connected session. The menu
// and the individual commands share it.
type actions struct {
	sess *device.Session
	dir  string
	cfg  *config.Config
}

func (a *actions) Screenshot(ctx context.Context, name string) error {
	path := output.ScreenshotPath(a.dir, name, time.Now())

	fmt.Println("Taking screenshot...")
	if err := a.sess.CaptureStill(ctx, path); err != nil {
		return err
	}
	fmt.Printf("Screenshot saved as: %s\n", path)
	return nil
}

func (a *actions) Record(ctx context.Context, name string, seconds int) error {
	path := output.RecordingPath(a.dir, name, time.Now())

	fmt.Printf("Starting screen recording for %d seconds...\n", seconds)
	if err := a.sess.CaptureVideo(ctx, seconds, path); err != nil {
		return err
	}
	fmt.Printf("Recording saved as: %s\n", path)
	return nil
}

// Stream saves numbered frames until interrupted with Ctrl+C.
func (a *actions) Stream(ctx context.Context, fps float64) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamer := capture.NewStreamer(a.sess, a.dir, fps)
	streamer.Progress = func(index int, path string, at time.Time) {
		fmt.Printf("Frame %d captured at %s\n", index, at.Format("15:04:05"))
	}

	fmt.Printf("Starting live stream at %g FPS. Press Ctrl+C to stop.\n", fps)
	fmt.Printf("Frames will be saved to: %s\n", a.dir)

	n, err := streamer.Run(ctx)
	fmt.Printf("\nStopping live stream... %d frames saved\n", n)
	return err
}

// View opens the preview window. The capture goroutine is not waited for
// once the window closes; it notices the stopped control on its own.
func (a *actions) View(ctx context.Context, fps, scale float64) error {
	if display.Used() {
		return display.ErrAlreadyUsed
	}

	ctrl := capture.NewControl(fps, scale)
	slot := &capture.Slot{}
	loop := capture.NewLoop(a.sess, ctrl, slot)

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
	}()

	fmt.Printf("Starting real-time viewer at %g FPS, scale %g\n", fps, scale)
	fmt.Println("Close the window or press Esc to exit")

	win := display.NewWindow(preview.New(ctrl, slot, a.cfg.Preview.RefreshInterval), ctrl)
	err := win.Run()
	ctrl.Stop()
	fmt.Println("Real-time viewer stopped")

	select {
	case lerr := <-loopErr:
		if lerr != nil {
			err = errors.Join(err, fmt.Errorf("capture stopped: %w", lerr))
		}
	default:
	}
	return err
}

func (a *actions) Info(ctx context.Context) error {
	return a.showInfo(ctx, "table")
}

func (a *actions) showInfo(ctx context.Context, format string) error {
	info, err := a.sess.QueryInfo(ctx)
	if err != nil {
		return err
	}
	return writeInfo(os.Stdout, info, format)
}

func (a *actions) Exit(ctx context.Context) error {
	a.disconnect(ctx)
	return nil
}

func (a *actions) disconnect(ctx context.Context) {
	if !a.sess.Connected() {
		return
	}
	a.sess.Disconnect(ctx)
}

// withSession connects using the current config and runs fn with the
// session's actions, disconnecting afterwards.
func withSession(ctx context.Context, needDir bool, fn func(a *actions) error) error {
	cfg := configMgr.Get()

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	a := &actions{sess: sess, cfg: cfg}
	defer a.disconnect(context.WithoutCancel(ctx))

	if needDir {
		if a.dir, err = outputDir(cfg); err != nil {
			return err
		}
		fmt.Printf("Output folder: %s\n", a.dir)
	}
	return fn(a)
}
