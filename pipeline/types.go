package pipeline

import (
	"context"
	"time"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/media"
	"github.com/lepinkainen/wildlifetagger/report"
	"github.com/lepinkainen/wildlifetagger/video"
)

// ProgressFunc receives overall progress in percent and a human-readable
// message. It is called synchronously from the processing loop.
type ProgressFunc func(percent float64, message string)

// DetectionLogger receives the detections of every processed image or frame
type DetectionLogger interface {
	LogDetections(entry report.DetectionEntry)
}

// FrameSourceOpener opens a video for frame-by-frame decoding
type FrameSourceOpener interface {
	OpenSource(ctx context.Context, path string) (video.Source, error)
}

// FrameSinkOpener creates the annotated output video
type FrameSinkOpener interface {
	OpenSink(outputPath string, info video.Info) (video.Sink, error)
}

// Job is one file to process and where its annotated copy goes
type Job struct {
	File       media.File
	OutputPath string
}

// FileResult is the outcome of processing one file
type FileResult struct {
	Path    string
	Type    media.FileType
	Success bool
	Message string

	// Detections is non-nil for processed images, even when empty.
	// Video detections are streamed to the recorder and only counted.
	Detections     []detection.Detection
	DetectionCount int

	ProcessingTimeMs float64
	OutputPath       string // set only on success

	FrameCount int
	FPS        float64
}

// SessionReport aggregates every file of one session
type SessionReport struct {
	SessionID   string
	InputFolder string
	StartTime   time.Time
	EndTime     time.Time

	TotalFiles            int
	SuccessfulFiles       int
	FailedFiles           int
	TotalDetections       int
	TotalProcessingTimeMs float64

	CSVPaths  report.CSVPaths
	Message   string
	Cancelled bool
	Results   []FileResult
}

// add folds one file result into the totals
func (r *SessionReport) add(res FileResult) {
	r.TotalFiles++
	if res.Success {
		r.SuccessfulFiles++
	} else {
		r.FailedFiles++
	}
	r.TotalDetections += res.DetectionCount
	r.TotalProcessingTimeMs += res.ProcessingTimeMs
	r.Results = append(r.Results, res)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
