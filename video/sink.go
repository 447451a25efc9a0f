package video

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lepinkainen/wildlifetagger/media"
)

// FallbackFPS is the output rate used when the source reports none
const FallbackFPS = 25.0

var mp4Fallback = map[string]bool{".webm": true, ".flv": true}

// EncodedPath returns the path a video output is actually written to.
// Containers that cannot carry MPEG-4 video are written as .mp4.
func EncodedPath(path string) string {
	ext := filepath.Ext(path)
	if mp4Fallback[strings.ToLower(ext)] {
		return strings.TrimSuffix(path, ext) + ".mp4"
	}
	return path
}

// Sink accepts annotated frames and produces the output video
type Sink interface {
	Write(frame image.Image) error
	// Commit finishes encoding and moves the output into place
	Commit() error
	// Abort stops encoding and removes any partial output
	Abort() error
}

// FFmpeg opens frame sources and sinks backed by the ffmpeg binaries
type FFmpeg struct {
	FFmpegPath  string // defaults to "ffmpeg" in PATH
	FFprobePath string // defaults to "ffprobe" in PATH
	Codec       string // defaults to "mpeg4"
}

func (f *FFmpeg) ffmpegPath() string {
	if f.FFmpegPath != "" {
		return f.FFmpegPath
	}
	return "ffmpeg"
}

func (f *FFmpeg) ffprobePath() string {
	if f.FFprobePath != "" {
		return f.FFprobePath
	}
	return "ffprobe"
}

func (f *FFmpeg) codec() string {
	if f.Codec != "" {
		return f.Codec
	}
	return "mpeg4"
}

type ffmpegSink struct {
	path   string
	tmp    string
	info   Info
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	buf    *image.RGBA
	done   bool
}

// OpenSink starts an encoder that writes frames of the given size to a temp
// file beside outputPath. Nothing appears at outputPath until Commit.
func (f *FFmpeg) OpenSink(outputPath string, info Info) (Sink, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", info.Width, info.Height)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	fps := info.FPS
	if fps <= 0 {
		fps = FallbackFPS
	}

	tmp := media.TempPath(outputPath)
	cmd := exec.Command(f.ffmpegPath(), "-v", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", f.codec(),
		"-q:v", "3",
		"-pix_fmt", "yuv420p",
		tmp,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to ffmpeg input: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg encoder: %w", err)
	}

	return &ffmpegSink{
		path:   outputPath,
		tmp:    tmp,
		info:   info,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		buf:    image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
	}, nil
}

func (s *ffmpegSink) Write(frame image.Image) error {
	if s.done {
		return fmt.Errorf("write to closed sink")
	}

	pix := s.buf.Pix
	if rgba, ok := frame.(*image.RGBA); ok && rgba.Bounds() == s.buf.Bounds() && rgba.Stride == s.buf.Stride {
		pix = rgba.Pix[:len(s.buf.Pix)]
	} else {
		draw.Draw(s.buf, s.buf.Bounds(), frame, frame.Bounds().Min, draw.Src)
	}

	if _, err := s.stdin.Write(pix); err != nil {
		return fmt.Errorf("failed to write frame to ffmpeg: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *ffmpegSink) Commit() error {
	if s.done {
		return fmt.Errorf("sink already closed")
	}
	s.done = true

	_ = s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		_ = os.Remove(s.tmp)
		return fmt.Errorf("ffmpeg encode failed: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		_ = os.Remove(s.tmp)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(s.path), err)
	}
	return nil
}

func (s *ffmpegSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()

	if err := os.Remove(s.tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial output: %w", err)
	}
	return nil
}
