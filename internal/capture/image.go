package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// MaxFramePixels caps the size of a resized frame, 8K UHD at 2x.
const MaxFramePixels = 7680 * 4320 * 2

var (
	// ErrEmptyFrame is returned when the device produced no image data.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrFrameTooLarge is returned by Resize for scales it refuses to apply.
	ErrFrameTooLarge = errors.New("scaled frame too large")
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	crlf         = []byte("\r\n")
	lf           = []byte("\n")
)

// FixLineEndings undoes the LF to CRLF translation some shell transports apply
// to screencap output. A stream that already starts with an intact PNG
// signature is returned unchanged, since its own CRLF bytes are real data.
func FixLineEndings(data []byte) []byte {
	if bytes.HasPrefix(data, pngSignature) {
		return data
	}
	return bytes.ReplaceAll(data, crlf, lf)
}

// Decode turns PNG bytes into an RGBA bitmap.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png (%d bytes): %w", len(data), err)
	}

	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// ScaledSize returns floor(w*scale) x floor(h*scale). The 1x1 floor only
// matters for degenerate inputs such as a frame a few pixels wide or a tiny scale.
func ScaledSize(w, h int, scale float64) (int, int) {
	sw := int(math.Floor(float64(w) * scale))
	sh := int(math.Floor(float64(h) * scale))
	return max(sw, 1), max(sh, 1)
}

// Resize scales src by scale with a Catmull-Rom filter. A scale of 1 returns
// src itself. Scales that are not positive finite numbers, or that would
// produce more than MaxFramePixels, return ErrFrameTooLarge instead of
// allocating.
func Resize(src *image.RGBA, scale float64) (*image.RGBA, error) {
	if scale == 1 {
		return src, nil
	}
	b := src.Bounds()
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: invalid scale %v", ErrFrameTooLarge, scale)
	}
	if px := float64(b.Dx()) * scale * float64(b.Dy()) * scale; px > MaxFramePixels {
		return nil, fmt.Errorf("%w: %dx%d at scale %g", ErrFrameTooLarge, b.Dx(), b.Dy(), scale)
	}

	w, h := ScaledSize(b.Dx(), b.Dy(), scale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

func orDefault(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return def
	}
	return v
}
