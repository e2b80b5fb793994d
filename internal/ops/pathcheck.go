package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/errors"
)

// ExportsDir returns the default destination directory for copies.
func ExportsDir(baseDir string) string {
	return filepath.Join(baseDir, "exports")
}

// AudioDir returns the default directory voice clips are read from.
func AudioDir(baseDir string) string {
	return filepath.Join(baseDir, "audio")
}

// AudioExtensions are the clip formats accepted from a local path.
var AudioExtensions = []string{".wav", ".mp3", ".m4a", ".ogg", ".oga", ".webm", ".flac", ".mp4", ".mpeg", ".mpga"}

// ValidateAudioPath checks a caller-supplied voice clip path before it is
// read. The rules match ValidatePath, with <base>/audio in place of
// <base>/exports.
func ValidateAudioPath(path, baseDir string, cfg *config.Config) error {
	return validatePath(path, AudioExtensions, AudioDir(baseDir), cfg)
}

// ValidatePath checks a caller-supplied output path before anything is written.
// It checks:
// 1. Path traversal (.. sequences)
// 2. Extension (ext, e.g. ".csv")
// 3. Directory restrictions (file must be DIRECTLY in <base>/exports or allowed_paths, no subdirectories)
// 4. Symlink safety (neither the parent directory nor the file may be a symlink)
//
// The "no subdirectories" rule leaves no intermediate directory that could be
// swapped for a symlink between validation and open. O_NOFOLLOW covers the
// final component.
func ValidatePath(path, ext, baseDir string, cfg *config.Config) error {
	return validatePath(path, []string{ext}, ExportsDir(baseDir), cfg)
}

func validatePath(path string, exts []string, defaultDir string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !hasExtension(cleaned, exts) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", strings.Join(exts, ", ")))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	// AllowUnsafePaths skips directory checks but never the symlink check.
	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := getAllowedDirs(defaultDir, cfg)
		if err != nil {
			return err
		}

		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}

		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}

	return nil
}

func hasExtension(path string, exts []string) bool {
	got := filepath.Ext(path)
	for _, ext := range exts {
		if strings.EqualFold(got, ext) {
			return true
		}
	}
	return false
}

// getAllowedDirs returns defaultDir plus absolute allowed_paths, with
// symlinked entries resolved.
func getAllowedDirs(defaultDir string, cfg *config.Config) ([]string, error) {
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isDirectlyInAllowedDir reports whether parentDir is exactly one of allowedDirs.
func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// containsTraversal checks if path contains a ".." component.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
