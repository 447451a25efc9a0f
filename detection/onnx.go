package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures a YOLOv8-style ONNX detector
type ONNXConfig struct {
	ModelPath    string
	LibraryPath  string // onnxruntime shared library; empty uses the loader default
	ModelVersion string
	InputSize    int
	ClassNames   map[int]string
	Threshold    float64
	IoUThreshold float64
}

// DefaultONNXConfig returns defaults matching a stock YOLOv8 export
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		InputSize:    DefaultInferenceSize,
		Threshold:    0.5,
		IoUThreshold: 0.45,
	}
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXDetector runs a YOLOv8 ONNX export: input "images" [1,3,S,S] and
// output "output0" [1,4+C,N] where N is the anchor count for S.
type ONNXDetector struct {
	mu        sync.Mutex
	cfg       ONNXConfig
	threshold float64
	anchors   int
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
}

// anchorCount returns the number of YOLOv8 predictions for a square input
// with strides 8, 16 and 32
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := size / stride
		n += side * side
	}
	return n
}

// NewONNXDetector loads the model and allocates its tensors
func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInferenceSize
	}
	if len(cfg.ClassNames) == 0 {
		return nil, fmt.Errorf("detector needs at least one class name")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model not accessible: %w", err)
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	size := int64(cfg.InputSize)
	anchors := anchorCount(cfg.InputSize)
	numClasses := int64(maxClassID(cfg.ClassNames) + 1)

	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), make([]float32, 3*size*size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 4+numClasses, int64(anchors)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXDetector{
		cfg:       cfg,
		threshold: cfg.Threshold,
		anchors:   anchors,
		session:   session,
		input:     input,
		output:    output,
	}, nil
}

func maxClassID(names map[int]string) int {
	m := 0
	for id := range names {
		if id > m {
			m = id
		}
	}
	return m
}

// Detect runs inference on an image at the configured inference size
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := d.cfg.InputSize
	if s := SizeOf(img); s.Width != size || s.Height != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	}

	fillCHW(d.input.GetData(), img, size)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return NonMaxSuppression(d.decode(d.output.GetData()), d.cfg.IoUThreshold), nil
}

// decode reads the [4+C, N] prediction matrix and keeps boxes whose best
// class score reaches the threshold
func (d *ONNXDetector) decode(out []float32) []RawDetection {
	n := d.anchors
	numClasses := len(out)/n - 4
	var boxes []RawDetection

	for i := 0; i < n; i++ {
		classID, best := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if score := out[(4+c)*n+i]; score > best {
				best, classID = score, c
			}
		}
		if float64(best) < d.threshold {
			continue
		}

		xc, yc := float64(out[i]), float64(out[n+i])
		w, h := float64(out[2*n+i]), float64(out[3*n+i])
		boxes = append(boxes, RawDetection{
			X1:      xc - w/2,
			Y1:      yc - h/2,
			X2:      xc + w/2,
			Y2:      yc + h/2,
			Score:   float64(best),
			ClassID: classID,
		})
	}
	return boxes
}

// fillCHW writes normalized RGB planes into dst
func fillCHW(dst []float32, img image.Image, size int) {
	stride := size * size
	b := img.Bounds()
	idx := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[idx] = float32(r>>8) / 255.0
			dst[idx+stride] = float32(g>>8) / 255.0
			dst[idx+2*stride] = float32(bl>>8) / 255.0
			idx++
		}
	}
}

// ClassNames returns the class table
func (d *ONNXDetector) ClassNames() map[int]string { return d.cfg.ClassNames }

// Threshold returns the confidence threshold
func (d *ONNXDetector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// SetThreshold changes the confidence threshold for subsequent calls
func (d *ONNXDetector) SetThreshold(threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

// ModelVersion returns the configured model version
func (d *ONNXDetector) ModelVersion() string { return d.cfg.ModelVersion }

// Close releases the session and tensors
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, destroy := range []func() error{d.session.Destroy, d.input.Destroy, d.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
