package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/lepinkainen/wildlifetagger/detection"
	"github.com/lepinkainen/wildlifetagger/pipeline"
	"github.com/lepinkainen/wildlifetagger/settings"
	"github.com/lepinkainen/wildlifetagger/types"
	"github.com/lepinkainen/wildlifetagger/ui"
	"github.com/lepinkainen/wildlifetagger/utils"
)

// ErrNoClassFile is returned when the selected model has no class list
var ErrNoClassFile = errors.New("model has no class file")

type DetectCmd struct {
	Folder    string  `arg:"" name:"folder" help:"Folder of camera-trap images and videos" type:"existingdir"`
	TUI       bool    `name:"tui" help:"Show the interactive progress view"`
	Recursive bool    `short:"r" help:"Search subfolders too"`
	Threshold float64 `short:"t" help:"Confidence threshold (0-1), overrides settings"`
	Model     string  `short:"m" help:"Registry model to use, overrides settings"`
	MediaOut  string  `name:"media-out" help:"Folder for annotated media" type:"path"`
	ReportOut string  `name:"report-out" help:"Folder for CSV reports" type:"path"`
	LogLevel  string  `name:"log-level" help:"Log level (debug, info, warn, error)"`
}

// apply layers the command-line flags over s
func (cmd *DetectCmd) apply(s *settings.Settings) {
	if cmd.Recursive {
		s.RecursiveFolderSearch = true
	}
	if cmd.Threshold > 0 {
		s.Threshold = cmd.Threshold
	}
	if cmd.Model != "" {
		s.Model = cmd.Model
	}
	if cmd.MediaOut != "" {
		s.MediaOutputPath = cmd.MediaOut
	}
	if cmd.ReportOut != "" {
		s.ReportOutputPath = cmd.ReportOut
	}
	if cmd.LogLevel != "" {
		s.LogLevel = cmd.LogLevel
	}
}

func (cmd *DetectCmd) Run(ctx context.Context, appCtx *types.AppContext) error {
	version := appCtx.VersionOrDefault()
	log := appCtx.Logger()

	s, err := loadSettings(appCtx)
	if err != nil {
		return err
	}
	cmd.apply(s)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if level, err := logrus.ParseLevel(s.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", s.LogLevel).Warn("Unknown log level, keeping default")
	}

	if err := utils.ValidateFFmpegDependencies(); err != nil {
		log.WithError(err).Warn("Video files will fail to process")
	}

	det, err := buildDetector(s)
	if err != nil {
		return fmt.Errorf("failed to load detector: %w", err)
	}
	defer func() { _ = det.Close() }()

	orch := &pipeline.Orchestrator{
		Detector: det,
		Config:   sessionConfig(s),
		Log:      log,
	}

	var rep *pipeline.SessionReport
	if cmd.TUI {
		rep, err = cmd.runWithTUI(ctx, orch, log, version)
	} else {
		rep, err = cmd.runPlain(ctx, orch, version)
	}
	if err != nil {
		return err
	}

	printReport(rep)
	return nil
}

// sessionConfig turns settings into an explicit session configuration
func sessionConfig(s *settings.Settings) pipeline.Config {
	return pipeline.Config{
		Recursive:             s.RecursiveFolderSearch,
		Threshold:             s.EffectiveThreshold(),
		MediaOutputPath:       s.MediaOutputPath,
		ReportOutputPath:      s.ReportOutputPath,
		ModelName:             s.Model,
		InferenceSize:         s.InferenceSize,
		IncludePerceptualHash: s.IncludePerceptualHash,
		MetricsTextfile:       s.MetricsTextfile,
		Settings:              s.AsMap(),
	}
}

// buildDetector loads the selected registry model
func buildDetector(s *settings.Settings) (*detection.ONNXDetector, error) {
	m, err := s.SelectedModel()
	if err != nil {
		return nil, err
	}
	if m.Classes == "" {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrNoClassFile)
	}
	names, err := detection.LoadClassNames(m.Classes)
	if err != nil {
		return nil, err
	}

	cfg := detection.DefaultONNXConfig()
	cfg.ModelPath = m.Path
	cfg.LibraryPath = s.ONNXLibraryPath
	cfg.InputSize = s.InferenceSize
	cfg.ClassNames = names
	cfg.Threshold = s.EffectiveThreshold()
	cfg.IoUThreshold = s.IoUThreshold
	return detection.NewONNXDetector(cfg)
}

// runPlain shows a single progress bar on stderr
func (cmd *DetectCmd) runPlain(ctx context.Context, orch *pipeline.Orchestrator, version string) (*pipeline.SessionReport, error) {
	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("WildlifeTagger %s", version)))
	fmt.Println(ui.ProcessingStyle.Render(fmt.Sprintf("Scanning %s...", cmd.Folder)))

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	rep, err := orch.Run(ctx, cmd.Folder, func(percent float64, message string) {
		bar.Describe(message)
		_ = bar.Set(int(percent))
	})
	_ = bar.Finish()
	return rep, err
}

// runWithTUI runs the session behind the bubbletea progress view. Log
// output goes to a file in the report folder while the view owns the terminal.
func (cmd *DetectCmd) runWithTUI(ctx context.Context, orch *pipeline.Orchestrator, log *logrus.Logger, version string) (*pipeline.SessionReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	restore := redirectLog(log, orch.Config.ReportOutputPath)
	defer restore()

	model := ui.NewSessionModel(cmd.Folder, version, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())

	orch.OnResult = func(res pipeline.FileResult) {
		p.Send(ui.FileCompletedMsg{
			Name:       filepath.Base(res.Path),
			Success:    res.Success,
			Detections: res.DetectionCount,
			Message:    res.Message,
		})
	}

	var (
		rep    *pipeline.SessionReport
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		rep, runErr = orch.Run(ctx, cmd.Folder, func(percent float64, message string) {
			p.Send(ui.ProgressMsg{Percent: percent, Message: message})
		})
		summary := ""
		if rep != nil {
			summary = rep.Message
		}
		p.Send(ui.SessionDoneMsg{Summary: summary, Err: runErr})
	}()

	_, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return nil, fmt.Errorf("progress view failed: %w", err)
	}
	return rep, runErr
}

// redirectLog sends log output to wildlifetagger.log under dir and returns
// a func restoring the previous writer
func redirectLog(log *logrus.Logger, dir string) func() {
	prev := log.Out
	var out io.Writer = io.Discard
	var f *os.File
	if err := os.MkdirAll(dir, 0755); err == nil {
		f, err = os.OpenFile(filepath.Join(dir, "wildlifetagger.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = f
		}
	}
	log.SetOutput(out)
	return func() {
		log.SetOutput(prev)
		if f != nil {
			_ = f.Close()
		}
	}
}

func printReport(rep *pipeline.SessionReport) {
	if rep.TotalFiles == 0 && rep.SessionID == "" {
		fmt.Println(ui.InfoStyle.Render(rep.Message))
		return
	}

	fmt.Println()
	switch {
	case rep.Cancelled:
		fmt.Println(ui.ErrorStyle.Render(fmt.Sprintf("⏹  %s", rep.Message)))
	case rep.FailedFiles > 0:
		fmt.Println(ui.WarningStyle.Render(fmt.Sprintf("⚠️  %s", rep.Message)))
	default:
		fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✅ %s", rep.Message)))
	}

	fmt.Printf("Session:    %s\n", rep.SessionID)
	fmt.Printf("Files:      %d total, %d successful, %d failed\n", rep.TotalFiles, rep.SuccessfulFiles, rep.FailedFiles)
	fmt.Printf("Detections: %d\n", rep.TotalDetections)
	fmt.Printf("Duration:   %s\n", rep.EndTime.Sub(rep.StartTime).Round(100 * time.Millisecond))

	for _, res := range rep.Results {
		if !res.Success {
			fmt.Printf("  %s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ %s: %s", res.Path, res.Message)))
		}
	}

	fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("Detection log: %s", rep.CSVPaths.Detections)))
	fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("Summary log:   %s", rep.CSVPaths.Summary)))
}
