package video

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes the first video stream of a file. Width and Height are
// the displayed size: ffmpeg applies rotation metadata while decoding, so a
// quarter-turn rotation swaps the coded dimensions.
type Info struct {
	Width      int
	Height     int
	FPS        float64 // 0 when the container does not report a rate
	FrameCount int     // 0 when unknown
	Rotation   int     // display rotation in degrees, normalized to [0, 360)
}

// Probe extracts stream dimensions, frame rate and frame count using ffprobe
func Probe(ctx context.Context, videoFile string) (Info, error) {
	return (&FFmpeg{}).probe(ctx, videoFile)
}

func (f *FFmpeg) probe(ctx context.Context, videoFile string) (Info, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath(), "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "default=noprint_wrappers=1", "--", videoFile)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Get the actual error message from ffprobe
		return Info{}, fmt.Errorf("failed to probe video: %w\nffprobe output: %s", err, strings.TrimSpace(string(output)))
	}

	return parseProbeOutput(string(output))
}

// parseProbeOutput reads ffprobe key=value lines. Only the first value of
// each key is used, which keeps stream values ahead of any later streams.
func parseProbeOutput(output string) (Info, error) {
	values := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		if _, seen := values[key]; !seen {
			values[key] = value
		}
	}

	var info Info
	var err error
	if info.Width, err = strconv.Atoi(values["width"]); err != nil || info.Width <= 0 {
		return Info{}, fmt.Errorf("no video stream found")
	}
	if info.Height, err = strconv.Atoi(values["height"]); err != nil || info.Height <= 0 {
		return Info{}, fmt.Errorf("invalid video height: %q", values["height"])
	}

	info.Rotation = parseRotation(values["rotation"], values["TAG:rotate"])
	if info.Rotation == 90 || info.Rotation == 270 {
		info.Width, info.Height = info.Height, info.Width
	}

	info.FPS = parseFrameRate(values["r_frame_rate"])

	if n, err := strconv.Atoi(values["nb_frames"]); err == nil && n > 0 {
		info.FrameCount = n
	} else if d, err := strconv.ParseFloat(values["duration"], 64); err == nil && d > 0 && info.FPS > 0 {
		// Containers like mkv don't store a frame count
		info.FrameCount = int(math.Round(d * info.FPS))
	}

	return info, nil
}

// parseFrameRate parses ffprobe rates like "30000/1001" or "25". Unreadable
// or undefined rates such as "0/0" yield 0.
func parseFrameRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	num, den, isFraction := strings.Cut(rate, "/")

	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !isFraction {
		return n
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}

// parseRotation reads the display matrix rotation, falling back to the
// legacy rotate tag. Only quarter turns are kept; anything else is 0.
func parseRotation(sideData, tag string) int {
	for _, v := range []string{sideData, tag} {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		deg := (int(math.Round(r))%360 + 360) % 360
		if deg%90 != 0 {
			return 0
		}
		return deg
	}
	return 0
}
