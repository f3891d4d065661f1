//go:build linux

package blockio

import (
	"golang.org/x/sys/unix"

	"github.com/hupe1980/recordfile/internal/fs"
)

// syncFile flushes file data to the device. On Linux fdatasync skips the
// metadata-only flush when the descriptor is available.
func syncFile(f fs.File) error {
	if fd, ok := f.(interface{ Fd() uintptr }); ok {
		return unix.Fdatasync(int(fd.Fd()))
	}
	return f.Sync()
}
