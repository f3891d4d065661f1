package recordfile

import (
	"os"

	"github.com/hupe1980/recordfile/internal/fs"
	"github.com/hupe1980/recordfile/internal/pagecache"
)

type options struct {
	cacheSize uint64
	readOnly  bool
	fileMode  os.FileMode
	fsys      fs.FileSystem
	logger    *Logger
	metrics   MetricsCollector
}

func defaultOptions() options {
	return options{
		cacheSize: pagecache.DefaultCacheSize,
		fileMode:  0o644,
		fsys:      fs.Default,
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
	}
}

// Option configures Open behavior.
type Option func(*options)

// WithCacheSize sets the page cache capacity in bytes. Values below the
// 256 KiB minimum are raised to it. The default is 1 MiB.
func WithCacheSize(bytes uint64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithReadOnly opens the store read-only. Opening a missing file
// read-only fails, and every mutating call returns ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(o *options) {
		o.readOnly = readOnly
	}
}

// WithFileMode sets the permission bits used when the backing file is
// created. The default is 0o644.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}

// WithLogger sets the logger. The default logger discards all output.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector invoked after each
// store operation. The default collector is a no-op.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// withFileSystem swaps the file system implementation. Used by tests to
// inject faults.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}
