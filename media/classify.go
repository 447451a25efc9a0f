package media

import (
	"path/filepath"
	"strings"
)

// FileType is the media class of a file, derived from its extension
type FileType string

const (
	TypeImage   FileType = "image"
	TypeVideo   FileType = "video"
	TypeUnknown FileType = "unknown"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tiff": true, ".tif": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
}

// Classify returns the file type of path based on its extension, case-insensitively
func Classify(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path)) // handle cases where extension is upper case

	switch {
	case imageExtensions[ext]:
		return TypeImage
	case videoExtensions[ext]:
		return TypeVideo
	default:
		return TypeUnknown
	}
}

// IsImageFile checks if the extension is one of the known image extensions
func IsImageFile(path string) bool {
	return Classify(path) == TypeImage
}

// IsVideoFile checks if the extension is one of the known video extensions
func IsVideoFile(path string) bool {
	return Classify(path) == TypeVideo
}
