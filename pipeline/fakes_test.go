package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/report"
	"github.com/lepinkainen/wildlifetagger/video"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	black = color.RGBA{A: 255}
)

// colorDetector reports one "Dog" in the middle of any mostly red image
type colorDetector struct {
	mu        sync.Mutex
	threshold float64
	calls     int
	panicOn   int // panic on this call number when > 0
	onDetect  func(calls int)
}

func (d *colorDetector) Detect(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	d.mu.Lock()
	d.calls++
	calls := d.calls
	d.mu.Unlock()

	if d.onDetect != nil {
		d.onDetect(calls)
	}
	if d.panicOn > 0 && calls == d.panicOn {
		panic("detector exploded")
	}

	b := img.Bounds()
	r, g, _, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	if r>>8 > 200 && g>>8 < 60 {
		return []detection.RawDetection{{X1: 160, Y1: 160, X2: 480, Y2: 480, Score: 0.9, ClassID: 0}}, nil
	}
	return nil, nil
}

func (d *colorDetector) ClassNames() map[int]string { return map[int]string{0: "Dog"} }
func (d *colorDetector) Threshold() float64          { return d.threshold }
func (d *colorDetector) SetThreshold(t float64)      { d.threshold = t }
func (d *colorDetector) Close() error                { return nil }

// errDetector always fails
type errDetector struct{ colorDetector }

func (d *errDetector) Detect(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	return nil, errors.New("inference backend unavailable")
}

// fakeVideo is an in-memory video served by fakeMedia
type fakeVideo struct {
	info    video.Info
	frames  []color.Color
	failAt  int // decode error at this frame index when > 0
	openErr error
}

type fakeSource struct {
	v     *fakeVideo
	next  int
	close int
}

func (s *fakeSource) Info() video.Info { return s.v.info }

func (s *fakeSource) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.v.failAt > 0 && s.next == s.v.failAt {
		return nil, errors.New("corrupt packet")
	}
	if s.next >= len(s.v.frames) {
		return nil, io.EOF
	}
	frame := solid(s.v.info.Width, s.v.info.Height, s.v.frames[s.next])
	s.next++
	return frame, nil
}

func (s *fakeSource) Close() error {
	s.close++
	return nil
}

type fakeSink struct {
	path      string
	frames    int
	committed bool
	aborted   bool
}

func (s *fakeSink) Write(frame image.Image) error {
	s.frames++
	return nil
}

func (s *fakeSink) Commit() error {
	s.committed = true
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte("video"), 0644)
}

func (s *fakeSink) Abort() error {
	s.aborted = true
	return nil
}

// fakeMedia opens fake sources and sinks keyed by base file name
type fakeMedia struct {
	videos  map[string]*fakeVideo
	sources []*fakeSource
	sinks   []*fakeSink
}

func (m *fakeMedia) OpenSource(ctx context.Context, path string) (video.Source, error) {
	v, ok := m.videos[filepath.Base(path)]
	if !ok {
		return nil, errors.New("no such video")
	}
	if v.openErr != nil {
		return nil, v.openErr
	}
	src := &fakeSource{v: v}
	m.sources = append(m.sources, src)
	return src, nil
}

func (m *fakeMedia) OpenSink(outputPath string, info video.Info) (video.Sink, error) {
	sink := &fakeSink{path: outputPath}
	m.sinks = append(m.sinks, sink)
	return sink, nil
}

// recordingLogger captures LogDetections calls
type recordingLogger struct {
	entries []report.DetectionEntry
}

func (r *recordingLogger) LogDetections(entry report.DetectionEntry) {
	r.entries = append(r.entries, entry)
}

func repeat(c color.Color, n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, solid(320, 240, c), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
