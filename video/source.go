package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Source yields decoded frames in presentation order
type Source interface {
	Info() Info
	// Next returns the next frame, or io.EOF once the stream is exhausted
	Next(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// ffmpegSource decodes a file to raw RGBA frames through an ffmpeg pipe
type ffmpegSource struct {
	info   Info
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer

	waitOnce sync.Once
	waitErr  error
}

// OpenSource probes videoFile and starts decoding it
func (f *FFmpeg) OpenSource(ctx context.Context, videoFile string) (Source, error) {
	info, err := f.probe(ctx, videoFile)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(f.ffmpegPath(), "-v", "error", "-nostdin",
		"-i", videoFile,
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to ffmpeg output: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &ffmpegSource{info: info, cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

func (s *ffmpegSource) Info() Info {
	return s.info
}

func (s *ffmpegSource) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	_, err := io.ReadFull(s.stdout, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF):
		if werr := s.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		_ = s.wait()
		return nil, fmt.Errorf("truncated frame from ffmpeg: %s", strings.TrimSpace(s.stderr.String()))
	default:
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
}

func (s *ffmpegSource) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// Close stops the decoder if it is still running
func (s *ffmpegSource) Close() error {
	if s.cmd.ProcessState == nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}
