package report

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// SessionSummary is the single row written at the end of a session
type SessionSummary struct {
	StartTime             time.Time
	EndTime               time.Time
	ModelVersion          string
	TotalFiles            int
	SuccessfulFiles       int
	FailedFiles           int
	TotalDetections       int
	TotalProcessingTimeMs float64
	InputFolder           string
	MediaOutputPath       string
	ReportOutputPath      string
	Threshold             float64
	Settings              map[string]string
}

// LogSessionSummary appends exactly one row to the summary CSV
func (r *Recorder) LogSessionSummary(s SessionSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{
		r.sessionID,
		s.StartTime.Format(rowTimeLayout),
		s.EndTime.Format(rowTimeLayout),
		r.modelName,
		s.ModelVersion,
		strconv.Itoa(s.TotalFiles),
		strconv.Itoa(s.SuccessfulFiles),
		strconv.Itoa(s.FailedFiles),
		strconv.Itoa(s.TotalDetections),
		formatRounded(s.TotalProcessingTimeMs, 2),
		s.InputFolder,
		s.MediaOutputPath,
		s.ReportOutputPath,
		formatFloat(s.Threshold),
		FormatSettings(s.Settings),
	}

	if err := appendRows(r.paths.Summary, [][]string{row}); err != nil {
		r.log.WithError(err).Error("Error logging session summary")
		return
	}
	r.log.WithField("path", r.paths.Summary).Info("Session summary logged")
}

// FormatSettings renders settings as key=value pairs sorted by key and
// joined with ';'. An empty map renders as "Default".
func FormatSettings(settings map[string]string) string {
	if len(settings) == 0 {
		return "Default"
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + settings[k]
	}
	return strings.Join(pairs, ";")
}
