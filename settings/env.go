package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "WILDLIFETAGGER_"

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from WILDLIFETAGGER_* environment variables
func (s *Settings) ApplyEnv() error {
	strs := map[string]*string{
		"MEDIA_OUTPUT_PATH":  &s.MediaOutputPath,
		"REPORT_OUTPUT_PATH": &s.ReportOutputPath,
		"MODEL":              &s.Model,
		"ONNX_LIBRARY_PATH":  &s.ONNXLibraryPath,
		"METRICS_TEXTFILE":   &s.MetricsTextfile,
		"LOG_LEVEL":          &s.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"RECURSIVE_FOLDER_SEARCH": &s.RecursiveFolderSearch,
		"INCLUDE_PERCEPTUAL_HASH": &s.IncludePerceptualHash,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	floats := map[string]*float64{
		"THRESHOLD":     &s.Threshold,
		"IOU_THRESHOLD": &s.IoUThreshold,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "INFERENCE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sINFERENCE_SIZE: %w", EnvPrefix, err)
		}
		s.InferenceSize = n
	}

	return nil
}
