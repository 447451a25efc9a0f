package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/media"
	"github.com/lepinkainen/wildlifetagger/metrics"
	"github.com/lepinkainen/wildlifetagger/report"
)

// Config is everything a session needs besides the detector. It is passed
// in explicitly so a session never reads ambient settings.
type Config struct {
	Recursive             bool
	Threshold             float64
	MediaOutputPath       string
	ReportOutputPath      string
	ModelName             string
	InferenceSize         int
	IncludePerceptualHash bool
	MetricsTextfile       string

	// Settings is recorded verbatim in the summary's settings_used column
	Settings map[string]string
}

// Orchestrator runs one detection session over a folder
type Orchestrator struct {
	Detector detection.Detector
	Config   Config
	Sources  FrameSourceOpener // nil uses ffmpeg
	Sinks    FrameSinkOpener   // nil uses ffmpeg
	Metrics  *metrics.Metrics  // nil creates a fresh registry per run
	Log      logrus.FieldLogger

	// OnResult, when set, is called after each file finishes
	OnResult func(FileResult)
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// Run processes every image and then every video under folder. Per-file
// failures are counted, not returned; the only errors are conditions that
// stop a session from starting at all. A cancelled context stops before the
// next file and the summary is still written.
func (o *Orchestrator) Run(ctx context.Context, folder string, onProgress ProgressFunc) (*SessionReport, error) {
	log := o.logger()
	rep := &SessionReport{InputFolder: folder, StartTime: time.Now()}

	files, err := media.Enumerate(folder, o.Config.Recursive)
	if err != nil {
		log.WithError(err).Warn("Cannot read input folder")
		rep.Message = fmt.Sprintf("Folder not found or unreadable: %s", folder)
		rep.EndTime = time.Now()
		return rep, nil
	}

	images, videos := media.Partition(files)
	total := len(images) + len(videos)
	if total == 0 {
		rep.Message = fmt.Sprintf("No image or video files found in %s", folder)
		rep.EndTime = time.Now()
		return rep, nil
	}

	if o.Config.Threshold > 0 {
		o.Detector.SetThreshold(o.Config.Threshold)
	}

	rec, err := report.NewRecorder(o.Config.ReportOutputPath, o.Config.ModelName, log)
	if err != nil {
		return nil, err
	}
	rep.SessionID = rec.SessionID()
	rep.CSVPaths = rec.Paths()
	log = log.WithField("session_id", rep.SessionID)

	proc := NewProcessor(o.Detector, rec, log)
	if o.Sources != nil {
		proc.Sources = o.Sources
	}
	if o.Sinks != nil {
		proc.Sinks = o.Sinks
	}
	if o.Config.InferenceSize > 0 {
		proc.InferenceSize = o.Config.InferenceSize
	}
	proc.IncludePerceptualHash = o.Config.IncludePerceptualHash

	m := o.Metrics
	if m == nil {
		m = metrics.New()
	}

	log.WithFields(logrus.Fields{"images": len(images), "videos": len(videos)}).Info("Starting detection session")

	progress := newProgressTracker(total, onProgress)
	jobs := append(append([]media.File{}, images...), videos...)
	for i, f := range jobs {
		if ctx.Err() != nil {
			rep.Cancelled = true
			log.WithField("remaining", total-i).Info("Session cancelled")
			break
		}

		job := Job{File: f, OutputPath: media.OutputPath(o.Config.MediaOutputPath, f)}
		fileType := media.Classify(f.Path)
		if fileType == media.TypeImage {
			progress.start(i, fmt.Sprintf("Processing image %s...", f.Rel))
		} else {
			progress.start(i, fmt.Sprintf("Processing video %s...", f.Rel))
		}

		res := o.processSafely(ctx, proc, fileType, job, progress.within(i))
		if res.Message == MessageCancelled {
			rep.Cancelled = true
		}
		rep.add(res)
		m.ObserveFile(string(fileType), res.Success, res.ProcessingTimeMs/1000, res.DetectionCount)
		m.FramesDecoded.Add(uint64(res.FrameCount))
		if o.OnResult != nil {
			o.OnResult(res)
		}

		progress.finish(i, res.Message)
		if rep.Cancelled {
			break
		}
	}

	rep.EndTime = time.Now()
	switch {
	case rep.Cancelled:
		rep.Message = fmt.Sprintf("Cancelled after %d of %d files", rep.TotalFiles, total)
	case rep.FailedFiles > 0:
		rep.Message = fmt.Sprintf("Processed %d files, %d failed", rep.TotalFiles, rep.FailedFiles)
	default:
		rep.Message = fmt.Sprintf("Processed %d files", rep.TotalFiles)
	}

	rec.LogSessionSummary(report.SessionSummary{
		StartTime:             rep.StartTime,
		EndTime:               rep.EndTime,
		ModelVersion:          detection.ModelVersion(o.Detector),
		TotalFiles:            rep.TotalFiles,
		SuccessfulFiles:       rep.SuccessfulFiles,
		FailedFiles:           rep.FailedFiles,
		TotalDetections:       rep.TotalDetections,
		TotalProcessingTimeMs: rep.TotalProcessingTimeMs,
		InputFolder:           folder,
		MediaOutputPath:       o.Config.MediaOutputPath,
		ReportOutputPath:      o.Config.ReportOutputPath,
		Threshold:             o.Detector.Threshold(),
		Settings:              o.Config.Settings,
	})

	if o.Config.MetricsTextfile != "" {
		if err := m.WriteTextfile(o.Config.MetricsTextfile); err != nil {
			log.WithError(err).Error("Failed to write metrics textfile")
		}
	}

	if !rep.Cancelled {
		progress.emit(100, "Processing complete!")
	}

	log.WithFields(logrus.Fields{
		"total":      rep.TotalFiles,
		"successful": rep.SuccessfulFiles,
		"failed":     rep.FailedFiles,
		"detections": rep.TotalDetections,
	}).Info("Detection session finished")

	return rep, nil
}

// processSafely turns a panic inside one file into a failed result
func (o *Orchestrator) processSafely(ctx context.Context, proc *Processor, fileType media.FileType, job Job, onProgress ProgressFunc) (res FileResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger().WithFields(logrus.Fields{
				"file":  job.File.Path,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Unexpected error while processing file")
			res = failed(FileResult{Path: job.File.Path, Type: fileType}, start,
				"Unexpected error processing %s: %v", filepath.Base(job.File.Path), r)
		}
	}()

	if fileType == media.TypeVideo {
		return proc.ProcessVideo(ctx, job, onProgress)
	}
	return proc.ProcessImage(ctx, job)
}
