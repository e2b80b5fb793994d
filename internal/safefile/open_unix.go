//go:build !windows

// Package safefile opens files without following a symlink at the final
// path component.
package safefile

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// ErrSymlink is returned when the final path component is a symlink.
var ErrSymlink = errors.New("refusing to open symlink")

// OpenNoFollow opens path with O_NOFOLLOW and O_CLOEXEC added to flag.
//
// O_NOFOLLOW only protects the final component; callers validate the
// directory part themselves.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		return nil, translate(path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// OpenNoFollowRead opens path read-only. A missing file yields an error
// matching fs.ErrNotExist.
func OpenNoFollowRead(path string) (*os.File, error) {
	return OpenNoFollow(path, syscall.O_RDONLY, 0)
}

func translate(path string, err error) error {
	switch {
	case errors.Is(err, syscall.ELOOP):
		return &fs.PathError{Op: "open", Path: path, Err: ErrSymlink}
	case errors.Is(err, syscall.ENOENT):
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	default:
		return &fs.PathError{Op: "open", Path: path, Err: err}
	}
}
