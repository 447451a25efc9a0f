package media

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		expected FileType
	}{
		{"photo.jpg", TypeImage},
		{"photo.JPG", TypeImage},
		{"photo.jpeg", TypeImage},
		{"scan.TIF", TypeImage},
		{"scan.tiff", TypeImage},
		{"frame.webp", TypeImage},
		{"frame.bmp", TypeImage},
		{"frame.png", TypeImage},
		{"clip.mp4", TypeVideo},
		{"clip.MP4", TypeVideo},
		{"clip.m4v", TypeVideo},
		{"clip.mkv", TypeVideo},
		{"clip.wmv", TypeVideo},
		{"clip.flv", TypeVideo},
		{"clip.webm", TypeVideo},
		{"clip.avi", TypeVideo},
		{"clip.mov", TypeVideo},
		{"animation.gif", TypeUnknown},
		{"notes.txt", TypeUnknown},
		{"noextension", TypeUnknown},
		{"/path/with.dots/file", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.expected {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestIsImageAndVideoFile(t *testing.T) {
	if !IsImageFile("a.PNG") || IsImageFile("a.mp4") {
		t.Error("IsImageFile() misclassified")
	}
	if !IsVideoFile("a.MOV") || IsVideoFile("a.jpg") {
		t.Error("IsVideoFile() misclassified")
	}
}
