// Package display shows the live preview in a desktop window.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/bryanchriswhite/questcap/internal/preview"
)

// Title is the preview window title.
const Title = "Oculus Quest - Live View"

const controlsHelp = "+/- fps  [/] scale  Esc/Q stop"

// ErrAlreadyUsed is returned by Run after the first window of the process has
// closed. The windowing backend can only be started once.
var ErrAlreadyUsed = errors.New("the preview window can only be opened once per run; restart questcap, or use 'questcap serve' for a browser preview that can be reopened")

var started atomic.Bool

// Used reports whether a window has already been run in this process.
func Used() bool {
	return started.Load()
}

// Window hosts a preview.Refresher in an Ebitengine game loop. Update runs
// at the refresher's cadence.
type Window struct {
	refresher *preview.Refresher
	control   *capture.Control

	frame       *capture.Frame
	status      preview.Status
	ebitenImage *ebiten.Image
	uploaded    uint64
}

// NewWindow creates a preview window. Nothing is shown until Run.
func NewWindow(refresher *preview.Refresher, control *capture.Control) *Window {
	return &Window{
		refresher: refresher,
		control:   control,
		status:    preview.Status{Text: preview.InitializingText},
	}
}

// Run opens the window and blocks until the stream stops or the window is
// closed. Must be called from the main goroutine. The stream is always
// stopped when Run returns.
func (w *Window) Run() error {
	if !started.CompareAndSwap(false, true) {
		return ErrAlreadyUsed
	}
	defer w.control.Stop()

	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(ticksPerSecond(w.refresher.Interval()))

	logger.WithComponent("display").Info().
		Dur("refresh", w.refresher.Interval()).
		Msg("Preview window opened")

	if err := ebiten.RunGame(w); err != nil {
		return fmt.Errorf("preview window: %w", err)
	}
	return nil
}

func ticksPerSecond(interval time.Duration) int {
	tps := int(math.Round(float64(time.Second) / float64(interval)))
	if tps < 1 {
		return 1
	}
	return tps
}

// Update runs once per refresh interval: it applies key presses, pulls the
// latest frame and ends the game once the stream is stopped.
func (w *Window) Update() error {
	if ebiten.IsWindowBeingClosed() {
		w.control.Stop()
	}
	w.handleKeys()

	frame, status, ok := w.refresher.Tick()
	w.status = status
	if !ok {
		logger.WithComponent("display").Info().Msg("Preview window closed")
		return ebiten.Termination
	}
	if frame != nil {
		w.frame = frame
	}
	return nil
}

// Draw shows the last uploaded frame centered on black with the status text.
func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	if frame := w.frame; frame != nil {
		fw, fh := frame.Width(), frame.Height()
		if w.ebitenImage == nil ||
			w.ebitenImage.Bounds().Dx() != fw ||
			w.ebitenImage.Bounds().Dy() != fh {
			w.ebitenImage = ebiten.NewImage(fw, fh)
			w.uploaded = 0
		}
		if w.uploaded != frame.Seq {
			w.ebitenImage.WritePixels(frame.Image.Pix)
			w.uploaded = frame.Seq
		}

		scale, dx, dy := letterbox(screen.Bounds().Size(), image.Pt(fw, fh))

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(dx, dy)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(w.ebitenImage, op)
	}

	ebitenutil.DebugPrint(screen, fmt.Sprintf("%s\nFPS %.0f  Scale %.2f  |  %s",
		w.status.Text, w.status.FPS, w.status.Scale, controlsHelp))
}

// Layout keeps the logical screen the size of the window.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func (w *Window) handleKeys() {
	log := logger.WithComponent("display")

	switch {
	case justPressed(ebiten.KeyEqual, ebiten.KeyNumpadAdd):
		log.Info().Float64("fps", w.control.AdjustFPS(1)).Msg("Rate changed")
	case justPressed(ebiten.KeyMinus, ebiten.KeyNumpadSubtract):
		log.Info().Float64("fps", w.control.AdjustFPS(-1)).Msg("Rate changed")
	case justPressed(ebiten.KeyBracketRight):
		log.Info().Float64("scale", w.control.AdjustScale(0.1)).Msg("Scale changed")
	case justPressed(ebiten.KeyBracketLeft):
		log.Info().Float64("scale", w.control.AdjustScale(-0.1)).Msg("Scale changed")
	case justPressed(ebiten.KeyEscape, ebiten.KeyQ):
		log.Info().Msg("Stop requested")
		w.control.Stop()
	}
}

func justPressed(keys ...ebiten.Key) bool {
	for _, k := range keys {
		if inpututil.IsKeyJustPressed(k) {
			return true
		}
	}
	return false
}

// letterbox is the uniform scale that fits frame inside view, and the
// translation that centers the scaled frame.
func letterbox(view, frame image.Point) (scale, dx, dy float64) {
	if frame.X <= 0 || frame.Y <= 0 {
		return 1, 0, 0
	}
	scale = min(float64(view.X)/float64(frame.X), float64(view.Y)/float64(frame.Y))
	dx = (float64(view.X) - float64(frame.X)*scale) / 2
	dy = (float64(view.Y) - float64(frame.Y)*scale) / 2
	return scale, dx, dy
}
