package recordfile

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/recordfile/internal/locktable"
	"github.com/hupe1980/recordfile/internal/pagecache"
)

// Store is a single-file record storage engine. It is safe for
// concurrent use by many goroutines; Close must be serialized against
// in-flight operations by the caller.
//
// Lock ordering inside the engine: structural lock, then per-record
// locks in ascending offset order, then the header lock. Releases
// happen in reverse. One exception: a removal takes the free-list
// tail's lock after the removed record's neighborhood locks, whatever
// its offset, while holding the structural lock exclusively.
type Store struct {
	// mu serializes structural mutations of the record lists. Creates,
	// removals and relocating updates hold it exclusively; lookups,
	// reads and in-place updates hold it shared.
	mu sync.RWMutex

	// headerMu guards the in-memory storage header.
	headerMu sync.RWMutex

	locks  *locktable.Table
	cache  *pagecache.Cache
	header storageHeader

	freeLookupDepth atomic.Uint64

	logger  *Logger
	metrics MetricsCollector

	open atomic.Bool
}

// Open opens (or creates) the record store at path.
func Open(path string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := pagecache.Open(o.fsys, path, o.readOnly, o.cacheSize, o.fileMode)
	if err != nil {
		o.logger.LogOpen(path, o.readOnly, err)
		return nil, err
	}

	s := &Store{
		locks:   locktable.New(),
		cache:   cache,
		logger:  o.logger.WithPath(path),
		metrics: o.metrics,
	}

	s.headerMu.Lock()
	if cache.FileSize() == 0 && !o.readOnly {
		err = s.createStorageHeader()
	} else {
		err = s.loadStorageHeader()
	}
	s.headerMu.Unlock()

	if err != nil {
		_ = cache.Close()
		o.logger.LogOpen(path, o.readOnly, err)
		return nil, err
	}

	s.open.Store(true)
	s.logger.LogOpen(path, o.readOnly, nil)
	return s, nil
}

// Close flushes and closes the store. It is idempotent.
func (s *Store) Close() error {
	if !s.open.Swap(false) {
		return nil
	}

	if !s.cache.ReadOnly() {
		s.headerMu.Lock()
		err := s.writeStorageHeader()
		s.headerMu.Unlock()
		if err != nil {
			_ = s.cache.Close()
			return err
		}
	}
	return s.cache.Close()
}

// Flush persists the storage header and all dirty cache pages.
func (s *Store) Flush() error {
	start := time.Now()
	err := s.doFlush()
	s.metrics.RecordFlush(time.Since(start), err)
	s.logger.LogFlush(err)
	return err
}

func (s *Store) doFlush() error {
	if !s.open.Load() {
		return ErrClosed
	}
	if !s.cache.ReadOnly() {
		s.headerMu.Lock()
		err := s.writeStorageHeader()
		s.headerMu.Unlock()
		if err != nil {
			return err
		}
	}
	return s.cache.Flush()
}

// IsOpen reports whether the store is open.
func (s *Store) IsOpen() bool {
	return s.open.Load()
}

// ReadOnly reports whether the store was opened read-only.
func (s *Store) ReadOnly() bool {
	return s.cache.ReadOnly()
}

// FileSize returns the current length of the backing file.
func (s *Store) FileSize() uint64 {
	return s.cache.FileSize()
}

// TotalRecords returns the number of live records.
func (s *Store) TotalRecords() uint64 {
	s.headerMu.RLock()
	defer s.headerMu.RUnlock()
	return s.header.totalRecords
}

// TotalFreeRecords returns the number of records on the free list.
func (s *Store) TotalFreeRecords() uint64 {
	s.headerMu.RLock()
	defer s.headerMu.RUnlock()
	return s.header.totalFreeRecords
}

// CacheStats holds page cache access counters since the last reset.
type CacheStats struct {
	Requests     uint64
	Hits         uint64
	Misses       uint64
	BytesRead    uint64
	BytesWritten uint64
}

// HitRate returns the cache hit rate in percent (0-100).
func (s CacheStats) HitRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests) * 100
}

// MissRate returns the cache miss rate in percent (0-100).
func (s CacheStats) MissRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Requests) * 100
}

// CacheStats returns a snapshot of the page cache counters.
func (s *Store) CacheStats() CacheStats {
	stats := s.cache.Stats()
	return CacheStats{
		Requests:     stats.Requests,
		Hits:         stats.Hits,
		Misses:       stats.Misses,
		BytesRead:    stats.BytesRead,
		BytesWritten: stats.BytesWritten,
	}
}

// ResetCacheStats zeroes the page cache counters.
func (s *Store) ResetCacheStats() {
	s.cache.ResetStats()
}

// SetCacheSize resizes the page cache at runtime, flushing and
// reallocating the frame pool. It returns the actual capacity in bytes.
func (s *Store) SetCacheSize(bytes uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.SetCacheSize(bytes)
}

// CreateRecord allocates a record holding data, links it at the tail of
// the live list and returns a cursor positioned on it.
func (s *Store) CreateRecord(data []byte) (*Cursor, error) {
	start := time.Now()
	cursor, err := s.createRecord(data)
	s.metrics.RecordCreate(time.Since(start), err)
	if cursor != nil {
		s.logger.LogCreate(cursor.pos, len(data), err)
	} else {
		s.logger.LogCreate(NotFound, len(data), err)
	}
	return cursor, err
}

func (s *Store) createRecord(data []byte) (*Cursor, error) {
	if !s.open.Load() {
		return nil, ErrClosed
	}
	if s.cache.ReadOnly() {
		return nil, ErrReadOnly
	}
	if data == nil {
		return nil, fmt.Errorf("%w: nil data", ErrInvalidArgument)
	}
	if len(data) == 0 {
		return nil, ErrCapacityExhausted
	}
	if uint64(len(data)) > MaxRecordSize {
		return nil, fmt.Errorf("%w: record larger than 4 GiB", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offset, header, err := s.allocateRecord(data, true, NotFound, NotFound)
	if err != nil {
		return nil, err
	}
	return &Cursor{store: s, header: header, pos: offset}, nil
}

// GetRecord returns a cursor on the record at offset. The header is
// validated; deleted or corrupt records yield an error.
func (s *Store) GetRecord(offset uint64) (*Cursor, error) {
	if !s.open.Load() {
		return nil, ErrClosed
	}
	if offset == NotFound || offset < StorageHeaderSize {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidArgument, offset)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursorAt(offset)
}

// cursorAt reads the record header at offset under a shared record lock
// and wraps it in a cursor. Caller holds the structural lock shared.
func (s *Store) cursorAt(offset uint64) (*Cursor, error) {
	s.locks.RLock(offset)
	header, err := s.readRecordHeader(offset)
	s.locks.RUnlock(offset)

	if err != nil {
		return nil, err
	}
	if header.deleted() {
		return nil, ErrRecordDeleted
	}
	return &Cursor{store: s, header: header, pos: offset}, nil
}

// GetFirstRecord returns a cursor on the head of the live list.
func (s *Store) GetFirstRecord() (*Cursor, error) {
	if !s.open.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.headerMu.RLock()
	first := s.header.firstRecord
	s.headerMu.RUnlock()

	if first == NotFound {
		return nil, ErrNotFound
	}
	return s.cursorAt(first)
}

// GetLastRecord returns a cursor on the tail of the live list.
func (s *Store) GetLastRecord() (*Cursor, error) {
	if !s.open.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.headerMu.RLock()
	last := s.header.lastRecord
	s.headerMu.RUnlock()

	if last == NotFound {
		return nil, ErrNotFound
	}
	return s.cursorAt(last)
}

// RemoveRecord unlinks the cursor's record from the live list and adds
// it to the free list. The cursor advances to its former right
// neighbor, else its left neighbor, else becomes invalid.
func (s *Store) RemoveRecord(c *Cursor) error {
	start := time.Now()
	offset := NotFound
	if c != nil {
		offset = c.Position()
	}
	err := s.removeRecord(c)
	s.metrics.RecordRemove(time.Since(start), err)
	s.logger.LogRemove(offset, err)
	return err
}

func (s *Store) removeRecord(c *Cursor) error {
	if c == nil {
		return fmt.Errorf("%w: nil cursor", ErrInvalidArgument)
	}
	if !s.open.Load() {
		return ErrClosed
	}
	if s.cache.ReadOnly() {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pos == NotFound {
		return ErrNotFound
	}

	offset := c.pos
	header, err := s.readRecordHeader(offset)
	if err != nil {
		return err
	}
	if header.deleted() {
		return ErrRecordDeleted
	}

	left, right := header.previous, header.next

	// Exclusive locks over the three-record neighborhood, ascending.
	neighborhood := lockOrder(offset, left, right)
	for _, off := range neighborhood {
		s.locks.Lock(off)
	}
	defer func() {
		for i := len(neighborhood) - 1; i >= 0; i-- {
			s.locks.Unlock(neighborhood[i])
		}
	}()

	var (
		leftHeader  recordHeader
		rightHeader recordHeader
	)

	switch {
	case left != NotFound && right != NotFound:
		if leftHeader, err = s.readRecordHeader(left); err != nil {
			return err
		}
		if rightHeader, err = s.readRecordHeader(right); err != nil {
			return err
		}
		leftHeader.next = right
		rightHeader.previous = left
		if err = s.writeRecordHeader(left, &leftHeader); err != nil {
			return err
		}
		if err = s.writeRecordHeader(right, &rightHeader); err != nil {
			return err
		}
	case left != NotFound:
		if leftHeader, err = s.readRecordHeader(left); err != nil {
			return err
		}
		leftHeader.next = NotFound
		if err = s.writeRecordHeader(left, &leftHeader); err != nil {
			return err
		}
	case right != NotFound:
		if rightHeader, err = s.readRecordHeader(right); err != nil {
			return err
		}
		rightHeader.previous = NotFound
		if err = s.writeRecordHeader(right, &rightHeader); err != nil {
			return err
		}
	}

	if err = s.addRecordToFreeList(offset, &header); err != nil {
		return err
	}

	// Record and sibling bytes are on disk; counters go last.
	s.headerMu.Lock()
	switch {
	case left != NotFound && right != NotFound:
	case left != NotFound:
		s.header.lastRecord = left
	case right != NotFound:
		s.header.firstRecord = right
	default:
		s.header.firstRecord = NotFound
		s.header.lastRecord = NotFound
	}
	s.header.totalRecords--
	err = s.writeStorageHeader()
	s.headerMu.Unlock()
	if err != nil {
		return err
	}

	// Advance the cursor to a surviving neighbor.
	switch {
	case right != NotFound:
		c.pos = right
		c.header = rightHeader
	case left != NotFound:
		c.pos = left
		c.header = leftHeader
	default:
		c.invalidate()
	}

	return nil
}

// lockOrder returns the distinct valid offsets sorted ascending.
func lockOrder(offsets ...uint64) []uint64 {
	out := make([]uint64, 0, len(offsets))
	for _, off := range offsets {
		if off == NotFound {
			continue
		}
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
