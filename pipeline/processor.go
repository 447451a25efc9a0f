package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/media"
	"github.com/lepinkainen/wildlifetagger/report"
	"github.com/lepinkainen/wildlifetagger/video"
)

// MessageCancelled is the result message of a file interrupted by cancellation
const MessageCancelled = "cancelled"

// Processor runs detection over single images and videos
type Processor struct {
	Detector detection.Detector
	Recorder DetectionLogger
	Sources  FrameSourceOpener
	Sinks    FrameSinkOpener

	InferenceSize         int
	IncludePerceptualHash bool

	Log logrus.FieldLogger
}

// NewProcessor returns a Processor that decodes and encodes video with ffmpeg
func NewProcessor(det detection.Detector, rec DetectionLogger, log logrus.FieldLogger) *Processor {
	ff := &video.FFmpeg{}
	return &Processor{
		Detector:      det,
		Recorder:      rec,
		Sources:       ff,
		Sinks:         ff,
		InferenceSize: detection.DefaultInferenceSize,
		Log:           log,
	}
}

func (p *Processor) inferenceSize() detection.Size {
	size := p.InferenceSize
	if size <= 0 {
		size = detection.DefaultInferenceSize
	}
	return detection.Size{Width: size, Height: size}
}

func (p *Processor) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func failed(res FileResult, start time.Time, format string, args ...any) FileResult {
	res.Success = false
	res.Message = fmt.Sprintf(format, args...)
	res.OutputPath = ""
	res.ProcessingTimeMs = elapsedMs(start)
	return res
}

// ProcessImage detects, annotates and writes a single image. Failures are
// returned as an unsuccessful result, never as an error.
func (p *Processor) ProcessImage(ctx context.Context, job Job) FileResult {
	start := time.Now()
	name := filepath.Base(job.File.Path)
	res := FileResult{Path: job.File.Path, Type: media.TypeImage}
	log := p.logger().WithField("file", job.File.Path)

	if err := ctx.Err(); err != nil {
		return failed(res, start, MessageCancelled)
	}

	img, err := media.DecodeImage(job.File.Path)
	if err != nil {
		log.WithError(err).Warn("Failed to read image")
		return failed(res, start, "Failed to read image %s: %v", name, err)
	}

	original := detection.SizeOf(img)
	inference := p.inferenceSize()
	raws, err := p.Detector.Detect(ctx, media.ResizeForInference(img, inference.Width))
	if err != nil {
		log.WithError(err).Warn("Detection failed")
		return failed(res, start, "Detection failed for %s: %v", name, err)
	}
	detections := detection.MapDetections(raws, p.Detector.ClassNames(), inference, original)

	written, err := media.EncodeImage(job.OutputPath, media.Annotate(img, detections))
	if err != nil {
		log.WithError(err).Warn("Failed to write annotated image")
		return failed(res, start, "Failed to write output for %s: %v", name, err)
	}

	res.ProcessingTimeMs = elapsedMs(start)

	var metadata string
	if p.IncludePerceptualHash {
		if hash, err := media.PerceptualHash(img); err == nil {
			metadata = "phash=" + hash
		} else {
			log.WithError(err).Debug("Perceptual hash unavailable")
		}
	}

	p.Recorder.LogDetections(report.DetectionEntry{
		FilePath:         job.File.Path,
		Detections:       detections,
		ImageSize:        original,
		ProcessingTimeMs: report.Float(res.ProcessingTimeMs),
		ModelVersion:     detection.ModelVersion(p.Detector),
		Threshold:        p.Detector.Threshold(),
		Metadata:         metadata,
	})

	res.Success = true
	res.Detections = detections
	res.DetectionCount = len(detections)
	res.OutputPath = written
	res.Message = fmt.Sprintf("Processed %s: %d detections", name, len(detections))
	log.WithFields(logrus.Fields{"detections": len(detections), "ms": res.ProcessingTimeMs}).Debug("Image processed")
	return res
}

// ProcessVideo runs detection on every frame and streams each frame's
// detections to the recorder. The output video only appears on success.
func (p *Processor) ProcessVideo(ctx context.Context, job Job, onProgress ProgressFunc) FileResult {
	start := time.Now()
	name := filepath.Base(job.File.Path)
	res := FileResult{Path: job.File.Path, Type: media.TypeVideo}
	log := p.logger().WithField("file", job.File.Path)

	if err := ctx.Err(); err != nil {
		return failed(res, start, MessageCancelled)
	}

	src, err := p.Sources.OpenSource(ctx, job.File.Path)
	if err != nil {
		log.WithError(err).Warn("Failed to open video")
		return failed(res, start, "Failed to open video %s: %v", name, err)
	}
	defer func() { _ = src.Close() }()

	info := src.Info()
	res.FPS = info.FPS

	outputPath := video.EncodedPath(job.OutputPath)
	sink, err := p.Sinks.OpenSink(outputPath, info)
	if err != nil {
		log.WithError(err).Warn("Failed to create output video")
		return failed(res, start, "Failed to create output video for %s: %v", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sink.Abort()
		}
	}()

	inference := p.inferenceSize()
	modelVersion := detection.ModelVersion(p.Detector)
	threshold := p.Detector.Threshold()
	classNames := p.Detector.ClassNames()

	for frameNumber := 0; ; frameNumber++ {
		if ctx.Err() != nil {
			log.Info("Video processing cancelled")
			return failed(res, start, MessageCancelled)
		}

		frameStart := time.Now()
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return failed(res, start, MessageCancelled)
			}
			log.WithError(err).WithField("frame", frameNumber).Warn("Failed to decode frame")
			return failed(res, start, "Failed to decode frame %d of %s: %v", frameNumber, name, err)
		}

		original := detection.SizeOf(frame)
		raws, err := p.Detector.Detect(ctx, media.ResizeForInference(frame, inference.Width))
		if err != nil {
			log.WithError(err).WithField("frame", frameNumber).Warn("Detection failed")
			return failed(res, start, "Detection failed on frame %d of %s: %v", frameNumber, name, err)
		}
		detections := detection.MapDetections(raws, classNames, inference, original)

		if err := sink.Write(media.Annotate(frame, detections)); err != nil {
			log.WithError(err).WithField("frame", frameNumber).Warn("Failed to write frame")
			return failed(res, start, "Failed to write frame %d of %s: %v", frameNumber, name, err)
		}

		timestamp := 0.0
		if info.FPS > 0 {
			timestamp = float64(frameNumber) / info.FPS
		}
		p.Recorder.LogDetections(report.DetectionEntry{
			FilePath:         job.File.Path,
			Detections:       detections,
			FrameNumber:      report.Int(frameNumber),
			FrameTimestamp:   report.Float(timestamp),
			ImageSize:        original,
			ProcessingTimeMs: report.Float(elapsedMs(frameStart)),
			ModelVersion:     modelVersion,
			Threshold:        threshold,
		})

		res.FrameCount++
		res.DetectionCount += len(detections)

		if onProgress != nil {
			percent := 0.0
			if info.FrameCount > 0 {
				percent = float64(res.FrameCount) / float64(info.FrameCount) * 100
				if percent > 100 {
					percent = 100
				}
			}
			total := "?"
			if info.FrameCount > 0 {
				total = fmt.Sprint(info.FrameCount)
			}
			onProgress(percent, fmt.Sprintf("Processing frame %d/%s...", res.FrameCount, total))
		}
	}

	if err := sink.Commit(); err != nil {
		committed = true // Commit cleans up after itself
		log.WithError(err).Warn("Failed to finish output video")
		return failed(res, start, "Failed to finish output video for %s: %v", name, err)
	}
	committed = true

	res.Success = true
	res.OutputPath = outputPath
	res.ProcessingTimeMs = elapsedMs(start)
	res.Message = fmt.Sprintf("Processed %s: %d frames, %d detections", name, res.FrameCount, res.DetectionCount)
	log.WithFields(logrus.Fields{"frames": res.FrameCount, "detections": res.DetectionCount}).Debug("Video processed")
	return res
}
