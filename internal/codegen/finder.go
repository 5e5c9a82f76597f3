package codegen

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/jamesmistry/breadlog/internal/config"
)

// FindCode walks the configured source directory and returns the paths of
// candidate source files: those with a configured extension and not matched
// by any exclusion glob. Unreadable subtrees are logged and skipped; a
// missing or non-directory source path is a setup error.
func FindCode(ctx *config.Context) ([]string, error) {
	sourceDir := ctx.Config.SourceDir

	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", sourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("configured source path %s is not a directory", sourceDir)
	}

	for _, pattern := range ctx.Config.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	extensions := make(map[string]bool, len(ctx.Config.Rust.Extensions))
	for _, ext := range ctx.Config.Rust.Extensions {
		extensions[strings.TrimPrefix(ext, ".")] = true
	}

	var files []string
	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.StopCommanded.Load() {
			return errStopped
		}
		if err != nil {
			log.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}

		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if excluded(ctx.Config.Exclude, rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext != "" && extensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return files, nil
}

func excluded(patterns []string, rel string) bool {
	if rel == "." {
		return false
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
