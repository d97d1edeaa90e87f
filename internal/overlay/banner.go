// Package overlay draws text banners onto frames before they are encoded for
// the web preview.
package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Position selects the frame edge the banner is attached to.
type Position int

const (
	Top Position = iota
	Bottom
)

// Banner is a single line of text on a translucent bar.
type Banner struct {
	Position   Position
	Padding    int
	Opacity    float64 // 0.0 to 1.0, applied to the bar only
	TextColor  color.RGBA
	Background color.RGBA
}

// DefaultBanner is white text on a dark bar across the top.
func DefaultBanner() Banner {
	return Banner{
		Position:   Top,
		Padding:    4,
		Opacity:    0.6,
		TextColor:  color.RGBA{255, 255, 255, 255},
		Background: color.RGBA{0, 0, 0, 255},
	}
}

var face = basicfont.Face7x13

// Height returns the bar height in pixels.
func (b Banner) Height() int {
	return face.Height + b.Padding*2
}

// Stamp returns a copy of img with text drawn on the banner. img itself is
// never modified, so published frames stay immutable.
func (b Banner) Stamp(img *image.RGBA, text string) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	if text == "" {
		return out
	}

	barH := b.Height()
	if barH > bounds.Dy() {
		barH = bounds.Dy()
	}
	bar := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+barH)
	if b.Position == Bottom {
		bar = image.Rect(bounds.Min.X, bounds.Max.Y-barH, bounds.Max.X, bounds.Max.Y)
	}

	FillRect(out, bar, b.Background, b.Opacity)

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(b.TextColor),
		Face: face,
		Dot:  fixed.P(bar.Min.X+b.Padding, bar.Min.Y+b.Padding+face.Ascent),
	}
	d.DrawString(text)

	return out
}

// TextWidth returns the rendered width of text in pixels.
func TextWidth(text string) int {
	return font.MeasureString(face, text).Ceil()
}

// FillRect blends a solid rectangle onto dst with the given opacity.
func FillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, opacity float64) {
	BlendImage(dst, image.NewUniform(c), r, opacity)
}

// BlendImage composites src over the r region of dst, scaling src's alpha by
// opacity. Parts of r outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, r image.Rectangle, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	clipped := r.Intersect(dst.Bounds())
	if clipped.Empty() {
		return
	}
	sp := src.Bounds().Min.Add(clipped.Min.Sub(r.Min))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(dst, clipped, src, sp, mask, image.Point{}, draw.Over)
}
