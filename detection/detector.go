package detection

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
)

// DefaultModelVersion is reported for detectors that do not expose a version
const DefaultModelVersion = "1.0"

// UnknownClass is used for class ids missing from the class table
const UnknownClass = "Unknown"

// Detector is a black-box object detector invoked once per image or frame.
// Detect receives an image already resized to the inference resolution and
// returns boxes in that resolution, filtered by Threshold.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]RawDetection, error)
	ClassNames() map[int]string
	Threshold() float64
	SetThreshold(threshold float64)
	Close() error
}

// Versioned is implemented by detectors that know their model version
type Versioned interface {
	ModelVersion() string
}

// ModelVersion returns the detector's model version or DefaultModelVersion
func ModelVersion(d Detector) string {
	if v, ok := d.(Versioned); ok && v.ModelVersion() != "" {
		return v.ModelVersion()
	}
	return DefaultModelVersion
}

// ClassName resolves a class id through the detector's class table
func ClassName(d Detector, id int) string {
	return lookupName(d.ClassNames(), id)
}

func lookupName(names map[int]string, id int) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return UnknownClass
}

// LoadClassNames reads a class file with one class name per line; the line
// index is the class id. Blank lines keep their index but map to Unknown.
func LoadClassNames(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := make(map[int]string)
	scanner := bufio.NewScanner(f)
	id := 0
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names[id] = name
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}

	return names, nil
}

// ClassNamesFromList builds a class table from an ordered list
func ClassNamesFromList(list []string) map[int]string {
	names := make(map[int]string, len(list))
	for i, name := range list {
		names[i] = name
	}
	return names
}
