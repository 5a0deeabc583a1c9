package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the files under root whose slash-separated relative path
// matches one of patterns and none of exclude, sorted. Directories matching
// an exclude pattern and auto-detected build trees are not descended into.
func Discover(root string, patterns, exclude []string) ([]string, error) {
	for _, p := range append(append([]string(nil), patterns...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern: %q", p)
		}
	}

	auto := DetectAutoExcludes(root)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if auto.Excludes(rel) || matchAny(exclude, rel) || matchAny(exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchAny(exclude, rel) || !matchAny(patterns, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// matchAny reports whether rel matches any glob, either as a whole path or
// by its base name.
func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
