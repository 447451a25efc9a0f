package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lepinkainen/wildlifetagger/detection"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return rows
}

// column returns the named column of a data row
func column(t *testing.T, headers, row []string, name string) string {
	t.Helper()
	for i, h := range headers {
		if h == name {
			return row[i]
		}
	}
	t.Fatalf("column %q not found", name)
	return ""
}

func newTestRecorder(t *testing.T, model string) *Recorder {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r, err := NewRecorder(filepath.Join(t.TempDir(), "reports"), model, logger)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	return r
}

func dog(x, y, w, h float64) detection.Detection {
	return detection.Detection{
		ClassName:  "Dog",
		Confidence: 0.9,
		BBox:       detection.BBox{XCenter: x, YCenter: y, Width: w, Height: h},
	}
}

func TestNewRecorder_WritesHeaders(t *testing.T) {
	r := newTestRecorder(t, "My Model v2!")

	paths := r.Paths()
	if !strings.HasPrefix(filepath.Base(paths.Detections), "detections_My_Model_v2_") {
		t.Errorf("unexpected detections filename %s", filepath.Base(paths.Detections))
	}
	if !strings.HasPrefix(filepath.Base(paths.Summary), "summary_My_Model_v2_") {
		t.Errorf("unexpected summary filename %s", filepath.Base(paths.Summary))
	}

	if rows := readCSV(t, paths.Detections); len(rows) != 1 || !reflect.DeepEqual(rows[0], DetectionHeaders) {
		t.Errorf("detections CSV = %v, want only the header", rows)
	}
	if rows := readCSV(t, paths.Summary); len(rows) != 1 || !reflect.DeepEqual(rows[0], SummaryHeaders) {
		t.Errorf("summary CSV = %v, want only the header", rows)
	}
	if len(DetectionHeaders) != 25 || len(SummaryHeaders) != 15 {
		t.Errorf("header lengths = %d/%d, want 25/15", len(DetectionHeaders), len(SummaryHeaders))
	}
}

func TestNewRecorder_UncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}

	logger, _ := test.NewNullLogger()
	if _, err := NewRecorder(filepath.Join(blocker, "reports"), "m", logger); err == nil {
		t.Error("NewRecorder() expected error when directory cannot be created, got nil")
	}
}

func TestSanitizeModelName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"default", "default"},
		{"Wildlife Model", "Wildlife_Model"},
		{"yolo/v8:best", "yolov8best"},
		{"trailing   ", "trailing"},
		{"keep-dash_under", "keep-dash_under"},
		{"  lead", "__lead"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeModelName(tt.input); got != tt.expected {
				t.Errorf("SanitizeModelName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogDetections_SentinelRow(t *testing.T) {
	r := newTestRecorder(t, "default")

	r.LogDetections(DetectionEntry{
		FilePath:     "/in/empty.jpg",
		ImageSize:    detection.Size{Width: 800, Height: 600},
		ModelVersion: "1.0",
		Threshold:    0.7,
	})

	rows := readCSV(t, r.Paths().Detections)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	h, row := rows[0], rows[1]

	if got := column(t, h, row, "detection_class"); got != NoDetectionClass {
		t.Errorf("detection_class = %q, want %q", got, NoDetectionClass)
	}
	if got := column(t, h, row, "confidence"); got != "0.0" {
		t.Errorf("confidence = %q, want 0.0", got)
	}
	for _, name := range []string{"bbox_x_center", "bbox_y_center", "bbox_width", "bbox_height",
		"bbox_x_min", "bbox_y_min", "bbox_x_max", "bbox_y_max", "frame_number", "frame_timestamp", "processing_time_ms"} {
		if got := column(t, h, row, name); got != "" {
			t.Errorf("%s = %q, want blank", name, got)
		}
	}
	if got := column(t, h, row, "file_type"); got != "image" {
		t.Errorf("file_type = %q, want image", got)
	}
	if got := column(t, h, row, "file_name"); got != "empty.jpg" {
		t.Errorf("file_name = %q, want empty.jpg", got)
	}
	if got := column(t, h, row, "image_width"); got != "800" {
		t.Errorf("image_width = %q, want 800", got)
	}
	if got := column(t, h, row, "session_id"); got != r.SessionID() {
		t.Errorf("session_id = %q, want %q", got, r.SessionID())
	}
}

func TestLogDetections_RoundingAndOptionalFields(t *testing.T) {
	r := newTestRecorder(t, "default")

	d := detection.Detection{
		ClassName:  "Deer",
		Confidence: 0.876543,
		BBox:       detection.BBox{XCenter: 100.126, YCenter: 50.004, Width: 20.5, Height: 10},
	}
	r.LogDetections(DetectionEntry{
		FilePath:         "/in/clip.MP4",
		Detections:       []detection.Detection{d},
		FrameNumber:      Int(12),
		FrameTimestamp:   Float(0.5),
		ImageSize:        detection.Size{Width: 1920, Height: 1080},
		ProcessingTimeMs: Float(42.25),
		ModelVersion:     "1.0",
		Threshold:        0.5,
		Metadata:         "phash=abc",
	})

	rows := readCSV(t, r.Paths().Detections)
	h, row := rows[0], rows[1]

	expected := map[string]string{
		"detection_class":     "Deer",
		"confidence":          "0.8765",
		"bbox_x_center":       "100.13",
		"bbox_y_center":       "50.0",
		"bbox_width":          "20.5",
		"bbox_height":         "10.0",
		"bbox_x_min":          "89.88",
		"bbox_y_min":          "45.0",
		"bbox_x_max":          "110.38",
		"bbox_y_max":          "55.0",
		"frame_number":        "12",
		"frame_timestamp":     "0.5",
		"file_type":           "video",
		"processing_time_ms":  "42.25",
		"detection_threshold": "0.5",
		"model_name":          "default",
		"model_version":       "1.0",
		"additional_metadata": "phash=abc",
	}
	for name, want := range expected {
		if got := column(t, h, row, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestLogDetections_CounterMonotonic(t *testing.T) {
	r := newTestRecorder(t, "default")

	r.LogDetections(DetectionEntry{FilePath: "a.jpg", Detections: []detection.Detection{dog(1, 1, 1, 1), dog(2, 2, 2, 2)}})
	r.LogDetections(DetectionEntry{FilePath: "b.jpg"})
	for frame := 0; frame < 3; frame++ {
		r.LogDetections(DetectionEntry{FilePath: "c.mp4", FrameNumber: Int(frame), Detections: []detection.Detection{dog(3, 3, 3, 3)}})
	}

	rows := readCSV(t, r.Paths().Detections)
	if len(rows) != 1+6 {
		t.Fatalf("expected 6 data rows, got %d", len(rows)-1)
	}
	for i, row := range rows[1:] {
		if want := strconv.Itoa(i + 1); row[0] != want {
			t.Errorf("row %d detection_id = %s, want %s", i, row[0], want)
		}
	}
	if r.DetectionCount() != 6 {
		t.Errorf("DetectionCount() = %d, want 6", r.DetectionCount())
	}
}

func TestLogDetections_WriteFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "reports")
	r, err := NewRecorder(dir, "default", logger)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	hook.Reset()

	r.LogDetections(DetectionEntry{FilePath: "a.jpg"})
	r.LogSessionSummary(SessionSummary{})

	errorsLogged := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	if errorsLogged != 2 {
		t.Errorf("expected 2 error log entries, got %d", errorsLogged)
	}
	if r.DetectionCount() != 1 {
		t.Errorf("DetectionCount() = %d, want 1 even when the write failed", r.DetectionCount())
	}
}

func TestLogSessionSummary(t *testing.T) {
	r := newTestRecorder(t, "default")
	start := time.Date(2026, 10, 14, 9, 30, 0, 0, time.Local)

	r.LogSessionSummary(SessionSummary{
		StartTime:             start,
		EndTime:               start.Add(90 * time.Second),
		ModelVersion:          "1.0",
		TotalFiles:            4,
		SuccessfulFiles:       3,
		FailedFiles:           1,
		TotalDetections:       2,
		TotalProcessingTimeMs: 1234.5678,
		InputFolder:           "/in",
		MediaOutputPath:       "/out",
		ReportOutputPath:      "/reports",
		Threshold:             0.7,
		Settings:              map[string]string{"threshold": "0.7", "recursive": "false"},
	})

	rows := readCSV(t, r.Paths().Summary)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 summary row, got %d rows", len(rows))
	}
	h, row := rows[0], rows[1]

	expected := map[string]string{
		"session_id":               r.SessionID(),
		"start_time":               "2026-10-14T09:30:00.000000",
		"end_time":                 "2026-10-14T09:31:30.000000",
		"model_name":               "default",
		"total_files_processed":    "4",
		"successful_files":         "3",
		"failed_files":             "1",
		"total_detections":         "2",
		"total_processing_time_ms": "1234.57",
		"input_folder":             "/in",
		"detection_threshold":      "0.7",
		"settings_used":            "recursive=false;threshold=0.7",
	}
	for name, want := range expected {
		if got := column(t, h, row, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestFormatSettings(t *testing.T) {
	if got := FormatSettings(nil); got != "Default" {
		t.Errorf("FormatSettings(nil) = %q, want Default", got)
	}
	got := FormatSettings(map[string]string{"b": "2", "a": "1", "c": "x y"})
	if got != "a=1;b=2;c=x y" {
		t.Errorf("FormatSettings() = %q", got)
	}
}

func TestFileType(t *testing.T) {
	tests := map[string]string{
		"a.JPG":  "image",
		"b.webm": "video",
		"c.txt":  "unknown",
		"d":      "unknown",
	}
	for path, want := range tests {
		if got := FileType(path); got != want {
			t.Errorf("FileType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSessionIDsDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		_, id := nextSession()
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true

		if len(id) != len("20060102_150405_000") || id[8] != '_' || id[15] != '_' {
			t.Errorf("session id %q does not match YYYYMMDD_HHMMSS_mmm", id)
		}
	}
}

func TestRecordersInSameSecondDoNotCollide(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()

	a, err := NewRecorder(dir, "default", logger)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	b, err := NewRecorder(dir, "default", logger)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	if a.SessionID() == b.SessionID() {
		t.Error("recorders share a session id")
	}
	if a.Paths().Detections == b.Paths().Detections {
		t.Error("recorders share a detections CSV")
	}
}

func TestCSVPaths_PairSharesStem(t *testing.T) {
	started := time.Date(2024, 5, 17, 21, 4, 9, 0, time.UTC)
	sessionID := "20240517_210409_000"

	tests := []struct {
		name     string
		existing string
		stem     string
	}{
		{"Free names use the timestamp", "", "20240517_210409"},
		{"Taken detections name moves both", "detections_default_20240517_210409.csv", sessionID},
		{"Taken summary name moves both", "summary_default_20240517_210409.csv", sessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.existing != "" {
				if err := os.WriteFile(filepath.Join(dir, tt.existing), nil, 0644); err != nil {
					t.Fatalf("Failed to create %s: %v", tt.existing, err)
				}
			}

			paths := csvPaths(dir, "default", started, sessionID)
			want := CSVPaths{
				Detections: filepath.Join(dir, "detections_default_"+tt.stem+".csv"),
				Summary:    filepath.Join(dir, "summary_default_"+tt.stem+".csv"),
			}
			if paths != want {
				t.Errorf("csvPaths() = %+v, want %+v", paths, want)
			}
		})
	}
}

func TestFormatRounded(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		expected string
	}{
		{0.90000001, 4, "0.9"},
		{-0.001, 2, "0.0"},
		{12.346, 2, "12.35"},
		{3, 2, "3.0"},
	}
	for _, tt := range tests {
		if got := formatRounded(tt.v, tt.decimals); got != tt.expected {
			t.Errorf("formatRounded(%v, %d) = %q, want %q", tt.v, tt.decimals, got, tt.expected)
		}
	}
}
