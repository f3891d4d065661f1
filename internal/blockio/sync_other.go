//go:build !linux

package blockio

import (
	"github.com/hupe1980/recordfile/internal/fs"
)

func syncFile(f fs.File) error {
	return f.Sync()
}
