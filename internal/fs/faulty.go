package fs

import (
	"errors"
	"os"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines failure behavior for files opened through a FaultyFS.
type Fault struct {
	// ShortReadAt truncates every ReadAt to at most this many bytes.
	// Negative disables the fault; SetFault treats zero as disabled too.
	ShortReadAt int
	// FailWriteAt makes WriteAt return Err without writing.
	FailWriteAt bool
	// FailOnSync makes Sync return Err.
	FailOnSync bool
	// Err overrides ErrInjected when set.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that injects errors into files it opens.
// The zero fault set behaves like the wrapped file system.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	fault Fault
}

// NewFaultyFS creates a FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys, fault: Fault{ShortReadAt: -1}}
}

// SetFault installs the fault applied to all subsequently issued operations,
// including files that are already open.
func (f *FaultyFS) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.ShortReadAt == 0 {
		fault.ShortReadAt = -1
	}
	f.fault = fault
}

func (f *FaultyFS) current() Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }

type faultyFile struct {
	File
	fs *FaultyFS
}

func (f *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	fault := f.fs.current()
	if fault.ShortReadAt >= 0 && len(p) > fault.ShortReadAt {
		n, err := f.File.ReadAt(p[:fault.ShortReadAt], off)
		if err != nil {
			return n, err
		}
		return n, fault.err()
	}
	return f.File.ReadAt(p, off)
}

func (f *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	fault := f.fs.current()
	if fault.FailWriteAt {
		return 0, fault.err()
	}
	return f.File.WriteAt(p, off)
}

func (f *faultyFile) Sync() error {
	fault := f.fs.current()
	if fault.FailOnSync {
		return fault.err()
	}
	return f.File.Sync()
}
