package blockio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/recordfile/internal/fs"
)

// PageSize is the fixed page size of the block layer in bytes.
const PageSize = 8192

var (
	// ErrInvalidPath is returned when an empty path is passed to Open.
	ErrInvalidPath = errors.New("invalid file path")
	// ErrClosed is returned by operations on a closed file.
	ErrClosed = errors.New("file is closed")
	// ErrReadOnly is returned by write operations on a read-only file.
	ErrReadOnly = errors.New("file is read-only")
)

// File is a page-granular view over one backing file. Reads and writes
// are positional, so concurrent page I/O only needs a shared lock; the
// exclusive lock guards open/close state transitions.
type File struct {
	mu       sync.RWMutex
	file     fs.File
	readOnly bool
	open     bool
}

// Open opens the file at path, creating it when writable and missing.
// A read-only open of a missing file fails.
func Open(fsys fs.FileSystem, path string, readOnly bool, perm os.FileMode) (*File, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if fsys == nil {
		fsys = fs.Default
	}

	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}

	f, err := fsys.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	return &File{file: f, readOnly: readOnly, open: true}, nil
}

// ReadPage reads up to one page at the given page number into buf.
// A short read near the end of file returns the bytes available with a
// nil error; buf must hold at least PageSize bytes.
func (f *File) ReadPage(pageNo uint64, buf []byte) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.open {
		return 0, ErrClosed
	}

	n, err := f.file.ReadAt(buf[:PageSize], int64(pageNo*PageSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read page %d: %w", pageNo, err)
	}
	return n, nil
}

// WritePage writes one full page at the given page number. Writing past
// the current end of file extends it.
func (f *File) WritePage(pageNo uint64, buf []byte) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.open {
		return 0, ErrClosed
	}
	if f.readOnly {
		return 0, ErrReadOnly
	}

	n, err := f.file.WriteAt(buf[:PageSize], int64(pageNo*PageSize))
	if err != nil {
		return n, fmt.Errorf("write page %d: %w", pageNo, err)
	}
	return n, nil
}

// Size returns the current file length in bytes.
func (f *File) Size() (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.open {
		return 0, ErrClosed
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// Sync forces OS buffers to the device.
func (f *File) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.open {
		return ErrClosed
	}
	if f.readOnly {
		return nil
	}
	return syncFile(f.file)
}

// Close closes the file. It is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return nil
	}
	f.open = false
	return f.file.Close()
}

// IsOpen reports whether the file is open.
func (f *File) IsOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.open
}

// ReadOnly reports whether the file was opened read-only.
func (f *File) ReadOnly() bool {
	return f.readOnly
}
