package batch

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// AutoExcludeResult contains the directories to exclude and why.
type AutoExcludeResult struct {
	// Directories to exclude (slash-separated, relative to the root)
	Directories []string
	// Reasons maps each directory to why it was excluded
	Reasons map[string]string
}

// DetectAutoExcludes finds configured build trees under root. Generated
// sources in those trees are never worth isolating. Only marker files that a
// build system always writes are used for detection.
func DetectAutoExcludes(root string) *AutoExcludeResult {
	result := &AutoExcludeResult{
		Directories: []string{},
		Reasons:     make(map[string]string),
	}

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip directories we can't read
		}
		if path == root || !d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.Name() == ".git" {
			return filepath.SkipDir
		}

		switch {
		case fileExists(filepath.Join(path, "CMakeCache.txt")):
			result.add(relPath, "CMake build tree (CMakeCache.txt detected)")
			return filepath.SkipDir
		case dirExists(filepath.Join(path, "meson-private")):
			result.add(relPath, "Meson build tree (meson-private/ detected)")
			return filepath.SkipDir
		case fileExists(filepath.Join(path, "config.status")) && fileExists(filepath.Join(path, "Makefile")):
			if relPath != "." {
				result.add(relPath, "Autotools build tree (config.status detected)")
				return filepath.SkipDir
			}
		}
		return nil
	})

	return result
}

// Excludes reports whether rel (slash-separated) lies inside a detected
// directory.
func (r *AutoExcludeResult) Excludes(rel string) bool {
	for _, dir := range r.Directories {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

func (r *AutoExcludeResult) add(dir, reason string) {
	if slices.Contains(r.Directories, dir) {
		return
	}
	r.Directories = append(r.Directories, dir)
	r.Reasons[dir] = reason
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
