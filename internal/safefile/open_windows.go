//go:build windows

// Package safefile opens files without following a symlink at the final
// path component.
package safefile

import (
	"errors"
	"os"
)

// ErrSymlink is returned when the final path component is a symlink.
var ErrSymlink = errors.New("refusing to open symlink")

// OpenNoFollow opens path. O_NOFOLLOW is not available on Windows, so the
// symlink check is done with Lstat first.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: ErrSymlink}
	}
	return os.OpenFile(path, flag, perm)
}

// OpenNoFollowRead opens path read-only.
func OpenNoFollowRead(path string) (*os.File, error) {
	return OpenNoFollow(path, os.O_RDONLY, 0)
}
