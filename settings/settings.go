package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where settings are looked up when no path is given
const DefaultPath = "wildlifetagger.yaml"

// Model is one entry of the model registry
type Model struct {
	Name        string  `yaml:"name"`
	Path        string  `yaml:"path"`
	Classes     string  `yaml:"classes,omitempty"` // class-name file, one name per line
	Description string  `yaml:"description,omitempty"`
	Accuracy    string  `yaml:"accuracy,omitempty"`
	Threshold   float64 `yaml:"threshold,omitempty"`
}

// Settings is the full set of options for a detection session
type Settings struct {
	RecursiveFolderSearch bool    `yaml:"recursive_folder_search"`
	Threshold             float64 `yaml:"threshold"`
	MediaOutputPath       string  `yaml:"media_output_path"`
	ReportOutputPath      string  `yaml:"report_output_path"`
	Model                 string  `yaml:"model"`
	Models                []Model `yaml:"models"`
	ONNXLibraryPath       string  `yaml:"onnx_library_path,omitempty"`
	InferenceSize         int     `yaml:"inference_size"`
	IoUThreshold          float64 `yaml:"iou_threshold"`
	IncludePerceptualHash bool    `yaml:"include_perceptual_hash"`
	MetricsTextfile       string  `yaml:"metrics_textfile,omitempty"`
	LogLevel              string  `yaml:"log_level"`
}

// Default returns the settings used when no file exists
func Default() *Settings {
	return &Settings{
		RecursiveFolderSearch: false,
		Threshold:             0.7,
		MediaOutputPath:       "output",
		ReportOutputPath:      "reports",
		Model:                 "default",
		Models: []Model{{
			Name:        "default",
			Path:        filepath.Join("models", "best.onnx"),
			Classes:     filepath.Join("models", "classes.txt"),
			Description: "Camera-trap wildlife detector",
		}},
		InferenceSize: 640,
		IoUThreshold:  0.45,
		LogLevel:      "info",
	}
}

// Load reads settings from path on top of the defaults. A missing file is
// not an error. Unknown keys are rejected.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := Decode(bytes.NewReader(data), s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

// Decode reads YAML from r into s, failing on keys that are not part of the schema
func Decode(r io.Reader, s *Settings) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes the settings as YAML, creating the parent directory if needed
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Validate checks value ranges and that the selected model is registered
func (s *Settings) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", s.Threshold)
	}
	if s.IoUThreshold < 0 || s.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be between 0 and 1, got %v", s.IoUThreshold)
	}
	if s.InferenceSize <= 0 {
		return fmt.Errorf("inference_size must be positive, got %d", s.InferenceSize)
	}
	if s.MediaOutputPath == "" || s.ReportOutputPath == "" {
		return fmt.Errorf("media_output_path and report_output_path must be set")
	}
	if _, err := s.SelectedModel(); err != nil {
		return err
	}
	return nil
}

// SelectedModel returns the registry entry named by Model
func (s *Settings) SelectedModel() (Model, error) {
	for _, m := range s.Models {
		if m.Name == s.Model {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("model %q is not in the model registry", s.Model)
}

// EffectiveThreshold is the session threshold. A zero top-level threshold
// defers to the selected model's own threshold.
func (s *Settings) EffectiveThreshold() float64 {
	if s.Threshold > 0 {
		return s.Threshold
	}
	if m, err := s.SelectedModel(); err == nil && m.Threshold > 0 {
		return m.Threshold
	}
	return s.Threshold
}

// AsMap returns the settings recorded with each session summary
func (s *Settings) AsMap() map[string]string {
	return map[string]string{
		"recursive_folder_search": strconv.FormatBool(s.RecursiveFolderSearch),
		"threshold":               strconv.FormatFloat(s.EffectiveThreshold(), 'f', -1, 64),
		"media_output_path":       s.MediaOutputPath,
		"report_output_path":      s.ReportOutputPath,
		"model":                   s.Model,
		"inference_size":          strconv.Itoa(s.InferenceSize),
		"iou_threshold":           strconv.FormatFloat(s.IoUThreshold, 'f', -1, 64),
		"include_perceptual_hash": strconv.FormatBool(s.IncludePerceptualHash),
	}
}
