package detection

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func TestAnchorCount(t *testing.T) {
	tests := []struct {
		size     int
		expected int
	}{
		{640, 8400},
		{320, 2100},
		{32, 21}, // 16 + 4 + 1
		{48, 46}, // 36 + 9 + 1, 48/32 truncates to 1
	}
	for _, tt := range tests {
		if got := anchorCount(tt.size); got != tt.expected {
			t.Errorf("anchorCount(%d) = %d, want %d", tt.size, got, tt.expected)
		}
	}
}

func TestONNXDetector_Decode(t *testing.T) {
	// Two classes, three anchors: layout is [xc, yc, w, h, c0, c1] x N
	n := 3
	out := make([]float32, 6*n)
	set := func(row, anchor int, v float32) { out[row*n+anchor] = v }

	// anchor 0: class 1 at 0.9
	set(0, 0, 100)
	set(1, 0, 100)
	set(2, 0, 20)
	set(3, 0, 40)
	set(5, 0, 0.9)
	// anchor 1: below threshold
	set(4, 1, 0.3)
	// anchor 2: class 0 at 0.6
	set(0, 2, 300)
	set(1, 2, 200)
	set(2, 2, 10)
	set(3, 2, 10)
	set(4, 2, 0.6)

	d := &ONNXDetector{threshold: 0.5, anchors: n}
	boxes := d.decode(out)
	if len(boxes) != 2 {
		t.Fatalf("decode() returned %d boxes, want 2", len(boxes))
	}

	first := boxes[0]
	if first.ClassID != 1 || first.X1 != 90 || first.Y1 != 80 || first.X2 != 110 || first.Y2 != 120 {
		t.Errorf("first box = %+v", first)
	}
	if boxes[1].ClassID != 0 {
		t.Errorf("second box class = %d, want 0", boxes[1].ClassID)
	}
}

func TestFillCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 0, color.RGBA{R: 255, G: 0, B: 51, A: 255})

	dst := make([]float32, 3*4)
	fillCHW(dst, img, 2)

	if dst[1] != 1 {
		t.Errorf("red plane at (1,0) = %v, want 1", dst[1])
	}
	if dst[4+1] != 0 {
		t.Errorf("green plane at (1,0) = %v, want 0", dst[4+1])
	}
	if dst[8+1] != 0.2 {
		t.Errorf("blue plane at (1,0) = %v, want 0.2", dst[8+1])
	}
}

func TestNewONNXDetector_Validation(t *testing.T) {
	cfg := DefaultONNXConfig()
	if _, err := NewONNXDetector(cfg); err == nil {
		t.Error("NewONNXDetector() expected error without class names")
	}

	cfg.ClassNames = map[int]string{0: "Cat"}
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	if _, err := NewONNXDetector(cfg); err == nil {
		t.Error("NewONNXDetector() expected error for missing model")
	}
}
