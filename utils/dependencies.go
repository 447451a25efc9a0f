package utils

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// FFmpegTools are the binaries video processing shells out to
var FFmpegTools = []string{"ffprobe", "ffmpeg"}

// MissingTools returns the tools that cannot be found in PATH, in the
// order given
func MissingTools(tools ...string) []string {
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// ValidateFFmpegDependencies checks if ffmpeg and ffprobe are available in PATH
func ValidateFFmpegDependencies() error {
	missing := MissingTools(FFmpegTools...)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%s not found in PATH; videos cannot be processed. %s",
		strings.Join(missing, " and "), InstallationInstructions())
}

// InstallationInstructions returns platform-specific installation instructions
func InstallationInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install with: brew install ffmpeg"
	case "linux":
		return "Install with: apt-get install ffmpeg (Ubuntu/Debian) or dnf install ffmpeg (Fedora)"
	case "windows":
		return "Download from https://ffmpeg.org/download.html and add to PATH"
	default:
		return "Download from https://ffmpeg.org/download.html"
	}
}
