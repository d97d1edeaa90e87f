// Package capture turns device screenshots into a stream of decoded frames.
//
// A Loop runs in the background and publishes the latest Frame into a Slot;
// readers poll the Slot at their own pace. A Control carries the tunable
// rate and scale and the shared active flag both sides watch.
package capture

import (
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultFPS is used whenever the requested rate is not a positive number.
	DefaultFPS = 10.0

	// DefaultScale is used whenever the requested scale is not a positive number.
	DefaultScale = 0.5

	// MaxFPS and MaxScale cap every requested setting. The minimums only
	// bound interactive adjustment.
	MinFPS   = 1.0
	MaxFPS   = 60.0
	MinScale = 0.1
	MaxScale = 2.0
)

// Frame is one decoded screenshot. Frames are never modified after publication.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

// Slot holds the most recent frame. Store replaces it; there is no queue.
type Slot struct {
	latest atomic.Pointer[Frame]
}

// Store publishes f as the latest frame.
func (s *Slot) Store(f *Frame) {
	s.latest.Store(f)
}

// Load returns the latest frame, or nil if none has been published.
func (s *Slot) Load() *Frame {
	return s.latest.Load()
}

// Control is the shared state between the capture loop and its viewers.
type Control struct {
	active atomic.Bool
	fps    atomic.Value // float64
	scale  atomic.Value // float64

	done     chan struct{}
	stopOnce sync.Once
	adjustMu sync.Mutex
}

// NewControl returns an active Control with the given requested settings.
func NewControl(fps, scale float64) *Control {
	c := &Control{done: make(chan struct{})}
	c.active.Store(true)
	c.fps.Store(fps)
	c.scale.Store(scale)
	return c
}

// Active reports whether capture and preview should keep running.
func (c *Control) Active() bool {
	return c.active.Load()
}

// Stop clears the active flag. Safe to call any number of times from any goroutine.
func (c *Control) Stop() {
	c.active.Store(false)
	c.stopOnce.Do(func() { close(c.done) })
}

// Done is closed once Stop has been called.
func (c *Control) Done() <-chan struct{} {
	return c.done
}

// FPS returns the requested rate as last set, valid or not.
func (c *Control) FPS() float64 {
	return c.fps.Load().(float64)
}

// SetFPS changes the requested rate; the loop picks it up on its next cycle.
func (c *Control) SetFPS(fps float64) {
	c.fps.Store(fps)
}

// Scale returns the requested scale factor as last set, valid or not.
func (c *Control) Scale() float64 {
	return c.scale.Load().(float64)
}

// SetScale changes the requested scale factor.
func (c *Control) SetScale(scale float64) {
	c.scale.Store(scale)
}

// Settings returns the rate and scale to use this cycle. Values that are not
// positive finite numbers become the defaults; larger ones are capped at
// MaxFPS and MaxScale.
func (c *Control) Settings() (fps, scale float64) {
	return EffectiveFPS(c.FPS()), EffectiveScale(c.Scale())
}

// EffectiveFPS is the rate actually used for a requested fps.
func EffectiveFPS(fps float64) float64 {
	return math.Min(orDefault(fps, DefaultFPS), MaxFPS)
}

// EffectiveScale is the scale actually used for a requested scale.
func EffectiveScale(scale float64) float64 {
	return math.Min(orDefault(scale, DefaultScale), MaxScale)
}

// AdjustFPS moves the effective rate by delta, clamped to [MinFPS, MaxFPS],
// and returns the new rate.
func (c *Control) AdjustFPS(delta float64) float64 {
	c.adjustMu.Lock()
	defer c.adjustMu.Unlock()

	fps, _ := c.Settings()
	fps = clamp(math.Round(fps+delta), MinFPS, MaxFPS)
	c.SetFPS(fps)
	return fps
}

// AdjustScale moves the effective scale by delta, clamped to
// [MinScale, MaxScale] and rounded to two decimals, and returns the new scale.
func (c *Control) AdjustScale(delta float64) float64 {
	c.adjustMu.Lock()
	defer c.adjustMu.Unlock()

	_, scale := c.Settings()
	scale = clamp(math.Round((scale+delta)*100)/100, MinScale, MaxScale)
	c.SetScale(scale)
	return scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
