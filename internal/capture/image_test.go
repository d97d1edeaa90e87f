package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func encodePNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x0a, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFixLineEndings(t *testing.T) {
	clean := encodePNG(t, 16, 16)

	t.Run("clean stream untouched", func(t *testing.T) {
		if got := FixLineEndings(clean); !bytes.Equal(got, clean) {
			t.Error("clean PNG was modified")
		}
	})

	t.Run("translated stream restored", func(t *testing.T) {
		translated := bytes.ReplaceAll(clean, []byte("\n"), []byte("\r\n"))
		got := FixLineEndings(translated)
		if !bytes.Equal(got, clean) {
			t.Fatal("translated PNG was not restored")
		}
		if _, err := Decode(got); err != nil {
			t.Fatalf("Decode after fix: %v", err)
		}
	})
}

func TestDecode_MalformedInput(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty input: got %v, want ErrEmptyFrame", err)
	}
	if _, err := Decode([]byte("error: closed")); err == nil {
		t.Error("garbage input should fail to decode")
	}
}

func TestDecode_Dimensions(t *testing.T) {
	img, err := Decode(encodePNG(t, 40, 20))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		w, h   int
		scale  float64
		ww, wh int
	}{
		{3664, 1920, 0.5, 1832, 960},
		{101, 51, 0.5, 50, 25},
		{100, 100, 0.33, 33, 33},
		{1000, 10, 0.01, 10, 1},
		{3, 3, 0.1, 1, 1},
		{640, 480, 1, 640, 480},
	}
	for _, tc := range cases {
		w, h := ScaledSize(tc.w, tc.h, tc.scale)
		if w != tc.ww || h != tc.wh {
			t.Errorf("ScaledSize(%d, %d, %v) = %dx%d, want %dx%d", tc.w, tc.h, tc.scale, w, h, tc.ww, tc.wh)
		}
	}
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 101, 51))

	if got, err := Resize(src, 1); err != nil || got != src {
		t.Errorf("scale 1 should return the source image, got err %v", err)
	}

	got, err := Resize(src, 0.5)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got.Bounds().Dx() != 50 || got.Bounds().Dy() != 25 {
		t.Errorf("resized to %v", got.Bounds())
	}

	for _, scale := range []float64{1e9, 1e300, math.Inf(1), math.NaN(), 0, -1} {
		if img, err := Resize(src, scale); !errors.Is(err, ErrFrameTooLarge) || img != nil {
			t.Errorf("Resize(%v) = %v, %v; want ErrFrameTooLarge", scale, img, err)
		}
	}
}

func TestControl_Settings(t *testing.T) {
	c := NewControl(30, 0.25)
	fps, scale := c.Settings()
	if fps != 30 || scale != 0.25 {
		t.Errorf("Settings = %v, %v", fps, scale)
	}

	for _, bad := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		c.SetFPS(bad)
		c.SetScale(bad)
		fps, scale := c.Settings()
		if fps != DefaultFPS || scale != DefaultScale {
			t.Errorf("Settings with %v = %v, %v; want defaults", bad, fps, scale)
		}
	}

	c.SetFPS(1e6)
	c.SetScale(1e9)
	if fps, scale := c.Settings(); fps != MaxFPS || scale != MaxScale {
		t.Errorf("Settings above range = %v, %v; want %v, %v", fps, scale, MaxFPS, MaxScale)
	}
	if c.Scale() != 1e9 {
		t.Errorf("Scale() = %v, should report the raw request", c.Scale())
	}

	// Small positive values are honored as requested.
	c.SetFPS(0.5)
	c.SetScale(0.05)
	if fps, scale := c.Settings(); fps != 0.5 || scale != 0.05 {
		t.Errorf("Settings = %v, %v; want 0.5, 0.05", fps, scale)
	}
}

func TestControl_StopIsIdempotent(t *testing.T) {
	c := NewControl(10, 0.5)
	if !c.Active() {
		t.Fatal("new control should be active")
	}

	c.Stop()
	c.Stop()

	if c.Active() {
		t.Error("control should be inactive after Stop")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done should be closed after Stop")
	}
}

func TestSlot(t *testing.T) {
	var s Slot
	if s.Load() != nil {
		t.Fatal("empty slot should return nil")
	}

	a := &Frame{Seq: 1, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	b := &Frame{Seq: 2, Image: image.NewRGBA(image.Rect(0, 0, 4, 3))}
	s.Store(a)
	s.Store(b)

	got := s.Load()
	if got != b {
		t.Fatal("slot should hold the last stored frame")
	}
	if got.Width() != 4 || got.Height() != 3 {
		t.Errorf("frame size = %dx%d", got.Width(), got.Height())
	}
}

func TestControl_Adjust(t *testing.T) {
	c := NewControl(10, 0.5)

	if got := c.AdjustFPS(1); got != 11 {
		t.Errorf("AdjustFPS(+1) = %v, want 11", got)
	}
	if got := c.AdjustScale(0.1); got != 0.6 {
		t.Errorf("AdjustScale(+0.1) = %v, want 0.6", got)
	}

	c.SetFPS(1)
	if got := c.AdjustFPS(-1); got != MinFPS {
		t.Errorf("AdjustFPS below minimum = %v", got)
	}
	c.SetFPS(MaxFPS)
	if got := c.AdjustFPS(5); got != MaxFPS {
		t.Errorf("AdjustFPS above maximum = %v", got)
	}

	c.SetScale(0.1)
	if got := c.AdjustScale(-0.1); got != MinScale {
		t.Errorf("AdjustScale below minimum = %v", got)
	}

	// Invalid settings adjust from the defaults.
	c.SetFPS(-3)
	if got := c.AdjustFPS(1); got != DefaultFPS+1 {
		t.Errorf("AdjustFPS from invalid = %v", got)
	}
}
