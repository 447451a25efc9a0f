package media

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lepinkainen/wildlifetagger/detection"
)

// Annotation style
var (
	BoxColor     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	BoxThickness = 4
	LabelScale   = 2
	LabelOffset  = 10
)

// Annotate returns a copy of img with every detection's box and upper-cased
// class label drawn on it. The source image is never modified.
func Annotate(img image.Image, detections []detection.Detection) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, d := range detections {
		r := d.BBox.Rect()
		drawRect(dst, r, BoxColor, BoxThickness)
		drawLabel(dst, strings.ToUpper(d.ClassName), r.Min, BoxColor)
	}
	return dst
}

// drawRect strokes r with bands of the given thickness inside its edges.
// Degenerate rectangles still get a visible mark.
func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	r = r.Canon()
	src := image.NewUniform(c)
	if r.Dx() < thickness || r.Dy() < thickness {
		draw.Draw(dst, r.Inset(-thickness/2), src, image.Point{}, draw.Src)
		return
	}

	bands := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, band := range bands {
		draw.Draw(dst, band, src, image.Point{}, draw.Src)
	}
}

// drawLabel renders text above anchor, or just inside the box when there
// is no room above it
func drawLabel(dst *image.RGBA, text string, anchor image.Point, c color.Color) {
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)

	scaledW, scaledH := width*LabelScale, height*LabelScale
	top := anchor.Y - LabelOffset - scaledH
	if top < 0 {
		top = anchor.Y + BoxThickness
	}
	target := image.Rect(anchor.X, top, anchor.X+scaledW, top+scaledH)
	draw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), draw.Over, nil)
}
