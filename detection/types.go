package detection

import (
	"image"
	"math"
)

// Size is a width/height pair in pixels
type Size struct {
	Width  int
	Height int
}

// SizeOf returns the dimensions of an image
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// RawDetection is a single detector output box in inference-resolution pixels
type RawDetection struct {
	X1, Y1, X2, Y2 float64
	Score          float64
	ClassID        int
}

// BBox is a bounding box in center/size form
type BBox struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// XMin returns the left edge of the box
func (b BBox) XMin() float64 { return b.XCenter - b.Width/2 }

// YMin returns the top edge of the box
func (b BBox) YMin() float64 { return b.YCenter - b.Height/2 }

// XMax returns the right edge of the box
func (b BBox) XMax() float64 { return b.XMin() + b.Width }

// YMax returns the bottom edge of the box
func (b BBox) YMax() float64 { return b.YMin() + b.Height }

// Corners returns (xMin, yMin, xMax, yMax)
func (b BBox) Corners() (float64, float64, float64, float64) {
	return b.XMin(), b.YMin(), b.XMax(), b.YMax()
}

// Rect converts the box to integer pixel corners, truncating toward zero
func (b BBox) Rect() image.Rectangle {
	x1, y1, x2, y2 := b.Corners()
	return image.Rect(int(math.Trunc(x1)), int(math.Trunc(y1)), int(math.Trunc(x2)), int(math.Trunc(y2)))
}

// Detection is one bounding box found in one image or frame, in original media pixels
type Detection struct {
	ClassName  string
	Confidence float64
	BBox       BBox
}
