package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/media"
)

// NoDetectionClass marks a file or frame that was processed but had no detections
const NoDetectionClass = "NO_DETECTION"

// timestampLayout matches the second-resolution stamp used in CSV filenames
const timestampLayout = "20060102_150405"

// rowTimeLayout is used for the timestamp, start_time and end_time columns
const rowTimeLayout = "2006-01-02T15:04:05.000000"

// DetectionHeaders is the column order of the detections CSV
var DetectionHeaders = []string{
	"detection_id", "session_id", "timestamp", "file_name", "file_path", "file_type",
	"frame_number", "frame_timestamp", "detection_class", "confidence",
	"bbox_x_center", "bbox_y_center", "bbox_width", "bbox_height",
	"bbox_x_min", "bbox_y_min", "bbox_x_max", "bbox_y_max",
	"image_width", "image_height", "model_name", "model_version",
	"detection_threshold", "processing_time_ms", "additional_metadata",
}

// SummaryHeaders is the column order of the session summary CSV
var SummaryHeaders = []string{
	"session_id", "start_time", "end_time", "model_name", "model_version",
	"total_files_processed", "successful_files", "failed_files", "total_detections",
	"total_processing_time_ms", "input_folder", "media_output_path", "report_output_path",
	"detection_threshold", "settings_used",
}

// CSVPaths holds the two files written by a Recorder
type CSVPaths struct {
	Detections string
	Summary    string
}

// DetectionEntry is one LogDetections call: the detections of a single image
// or video frame. Nil pointers are written as blank cells.
type DetectionEntry struct {
	FilePath         string
	Detections       []detection.Detection
	FrameNumber      *int
	FrameTimestamp   *float64
	ImageSize        detection.Size
	ProcessingTimeMs *float64
	ModelVersion     string
	Threshold        float64
	Metadata         string
}

// Recorder appends detection rows and session summaries to a pair of CSV
// files. Write failures are logged and never returned, so a broken report
// directory cannot stop a detection run.
type Recorder struct {
	mu        sync.Mutex
	modelName string
	sessionID string
	paths     CSVPaths
	counter   int
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewRecorder creates outputDir if needed and writes the headers of both
// CSV files. Only a failure to create the directory is returned.
func NewRecorder(outputDir, modelName string, log logrus.FieldLogger) (*Recorder, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if modelName == "" {
		modelName = detection.UnknownClass
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", outputDir, err)
	}

	started, sessionID := nextSession()
	r := &Recorder{
		modelName: modelName,
		sessionID: sessionID,
		log:       log.WithField("session_id", sessionID),
		now:       time.Now,
	}
	r.paths = csvPaths(outputDir, modelName, started, sessionID)

	if err := writeHeader(r.paths.Detections, DetectionHeaders); err != nil {
		r.log.WithError(err).Error("Error initializing detection CSV file")
	} else {
		r.log.WithField("path", r.paths.Detections).Info("Detection CSV initialized")
	}
	if err := writeHeader(r.paths.Summary, SummaryHeaders); err != nil {
		r.log.WithError(err).Error("Error initializing summary CSV file")
	} else {
		r.log.WithField("path", r.paths.Summary).Info("Summary CSV initialized")
	}

	return r, nil
}

// csvPaths builds detections_<model>_<YYYYMMDD_HHMMSS>.csv and the matching
// summary file. If either name is already taken in dir, the session id
// replaces the timestamp in both so the pair keeps one stem.
func csvPaths(dir, modelName string, started time.Time, sessionID string) CSVPaths {
	model := SanitizeModelName(modelName)
	build := func(stem string) CSVPaths {
		return CSVPaths{
			Detections: filepath.Join(dir, fmt.Sprintf("detections_%s_%s.csv", model, stem)),
			Summary:    filepath.Join(dir, fmt.Sprintf("summary_%s_%s.csv", model, stem)),
		}
	}

	paths := build(started.Format(timestampLayout))
	for _, p := range []string{paths.Detections, paths.Summary} {
		if _, err := os.Stat(p); err == nil {
			return build(sessionID)
		}
	}
	return paths
}

// SanitizeModelName keeps letters, digits, spaces, hyphens and underscores,
// trims trailing spaces and replaces the remaining spaces with underscores
func SanitizeModelName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}

func writeHeader(path string, headers []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// appendRows opens path for append, writes rows and closes it again
func appendRows(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if err := csv.NewWriter(f).WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LogDetections appends one row per detection, or a single NO_DETECTION row
// when the list is empty. Every row gets the next detection_id.
func (r *Recorder) LogDetections(entry DetectionEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timestamp := r.now().Format(rowTimeLayout)
	prefix := func() []string {
		r.counter++
		return []string{
			strconv.Itoa(r.counter),
			r.sessionID,
			timestamp,
			filepath.Base(entry.FilePath),
			entry.FilePath,
			FileType(entry.FilePath),
			optionalInt(entry.FrameNumber),
			optionalFloat(entry.FrameTimestamp),
		}
	}
	suffix := []string{
		strconv.Itoa(entry.ImageSize.Width),
		strconv.Itoa(entry.ImageSize.Height),
		r.modelName,
		entry.ModelVersion,
		formatFloat(entry.Threshold),
		optionalFloat(entry.ProcessingTimeMs),
		entry.Metadata,
	}

	var rows [][]string
	if len(entry.Detections) == 0 {
		row := append(prefix(), NoDetectionClass, formatFloat(0), "", "", "", "", "", "", "", "")
		rows = append(rows, append(row, suffix...))
	}
	for _, d := range entry.Detections {
		xMin, yMin, xMax, yMax := d.BBox.Corners()
		row := append(prefix(),
			d.ClassName,
			formatRounded(d.Confidence, 4),
			formatRounded(d.BBox.XCenter, 2),
			formatRounded(d.BBox.YCenter, 2),
			formatRounded(d.BBox.Width, 2),
			formatRounded(d.BBox.Height, 2),
			formatRounded(xMin, 2),
			formatRounded(yMin, 2),
			formatRounded(xMax, 2),
			formatRounded(yMax, 2),
		)
		rows = append(rows, append(row, suffix...))
	}

	if err := appendRows(r.paths.Detections, rows); err != nil {
		r.log.WithError(err).WithField("file", entry.FilePath).Error("Error logging detections to CSV")
	}
}

// FileType classifies path as "image", "video" or "unknown" by extension
func FileType(path string) string {
	return string(media.Classify(path))
}

// Paths returns the detection and summary CSV paths
func (r *Recorder) Paths() CSVPaths {
	return r.paths
}

// SessionID returns the id shared by every row this recorder writes
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// ModelName returns the model name written to every row
func (r *Recorder) ModelName() string {
	return r.modelName
}

// DetectionCount returns the number of detection rows emitted so far,
// sentinel rows included
func (r *Recorder) DetectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}
