package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// File is a candidate media file found under a root folder
type File struct {
	Path string // full path
	Rel  string // path relative to the enumeration root
}

// Enumerate lists regular files under root. Without recursion only direct
// children are returned; with recursion every subdirectory is walked.
// Results are sorted by relative path.
func Enumerate(root string, recursive bool) ([]File, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []File
	if recursive {
		files, err = walkRecursive(root)
	} else {
		files, err = listDirect(root)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

func listDirect(root string) ([]File, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	var files []File
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, File{Path: filepath.Join(root, entry.Name()), Rel: entry.Name()})
	}
	return files, nil
}

func walkRecursive(root string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
	}

	return files, nil
}

// Partition splits files into images and videos; other files are dropped
func Partition(files []File) (images, videos []File) {
	for _, f := range files {
		switch Classify(f.Path) {
		case TypeImage:
			images = append(images, f)
		case TypeVideo:
			videos = append(videos, f)
		}
	}
	return images, videos
}

// OutputPath mirrors a file's relative path under the output root
func OutputPath(outputRoot string, f File) string {
	rel := f.Rel
	if rel == "" {
		rel = filepath.Base(f.Path)
	}
	return filepath.Join(outputRoot, rel)
}
