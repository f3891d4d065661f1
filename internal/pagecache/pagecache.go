package pagecache

import (
	"container/list"
	"errors"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/recordfile/internal/blockio"
	"github.com/hupe1980/recordfile/internal/fs"
)

const (
	// PageSize is the page size of the underlying block layer.
	PageSize = blockio.PageSize

	// MinCacheSize is the smallest cache the pool will be sized to.
	MinCacheSize = 256 * 1024

	// DefaultCacheSize is used when the caller does not specify one.
	DefaultCacheSize = 1024 * 1024

	// noPage marks a frame that holds no file page.
	noPage = math.MaxUint64
)

// ErrFlushFailed is returned when not every dirty page could be persisted.
var ErrFlushFailed = errors.New("failed to persist dirty pages")

type pageState uint8

const (
	pageClean pageState = iota
	pageDirty
)

// frame is a single cache slot holding one page of data. The frame lock
// serializes access to its data and metadata; readers of the same page
// share it. A frame pointer obtained from the map may be repurposed by
// eviction before the caller locks it, so every use re-checks pageNo
// under the lock and retries on mismatch.
type frame struct {
	mu     sync.RWMutex
	pageNo uint64
	state  pageState
	avail  int
	data   []byte
	elem   *list.Element
}

// Stats holds cache access counters since the last reset.
type Stats struct {
	Requests     uint64
	Hits         uint64
	Misses       uint64
	BytesRead    uint64
	BytesWritten uint64
}

// HitRate returns the cache hit rate in percent (0-100).
func (s Stats) HitRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests) * 100
}

// MissRate returns the cache miss rate in percent (0-100).
func (s Stats) MissRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Requests) * 100
}

// Cache is an LRU page cache over a single file.
type Cache struct {
	file *blockio.File

	mu        sync.Mutex // guards pages, lru, pool, allocated
	pages     map[uint64]*frame
	lru       *list.List // of *frame, front = most recently used
	pool      []frame
	buf       []byte // backing storage for all frame data slices
	allocated int

	requests     atomic.Uint64
	misses       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	closed atomic.Bool
}

// Open opens (or creates) the file at path and allocates a frame pool of
// cacheBytes / PageSize frames, floored at MinCacheSize.
func Open(fsys fs.FileSystem, path string, readOnly bool, cacheBytes uint64, perm os.FileMode) (*Cache, error) {
	file, err := blockio.Open(fsys, path, readOnly, perm)
	if err != nil {
		return nil, err
	}

	c := &Cache{file: file}
	c.allocatePool(framesFor(cacheBytes))
	return c, nil
}

func framesFor(cacheBytes uint64) int {
	if cacheBytes < MinCacheSize {
		cacheBytes = MinCacheSize
	}
	return int(cacheBytes / PageSize)
}

// allocatePool installs a fresh frame pool. Caller must guarantee no
// concurrent cache use (open, or SetCacheSize after flush).
func (c *Cache) allocatePool(frames int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pool = make([]frame, frames)
	c.buf = make([]byte, frames*PageSize)
	for i := range c.pool {
		c.pool[i].pageNo = noPage
		c.pool[i].data = c.buf[i*PageSize : (i+1)*PageSize]
	}
	c.allocated = 0
	c.pages = make(map[uint64]*frame, frames)
	c.lru = list.New()
}

// CacheSize returns the pool capacity in bytes.
func (c *Cache) CacheSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.pool)) * PageSize
}

// SetCacheSize flushes the cache, drops every resident frame and
// reallocates the pool for the requested size, floored at MinCacheSize.
// It returns the actual capacity in bytes and resets statistics.
func (c *Cache) SetCacheSize(cacheBytes uint64) uint64 {
	if c.IsOpen() && !c.file.ReadOnly() {
		_ = c.Flush()
	}
	frames := framesFor(cacheBytes)
	c.allocatePool(frames)
	c.ResetStats()
	return uint64(frames) * PageSize
}

// Read copies up to len(dst) bytes starting at off into dst, loading
// missing pages on demand. It returns the number of bytes copied, which
// is short when the logical file ends inside the requested range.
func (c *Cache) Read(off uint64, dst []byte) int {
	// Aligned single-page reads bypass the range slicing.
	if off%PageSize == 0 && len(dst) == PageSize {
		return c.readAlignedPage(off/PageSize, dst)
	}

	if c.closed.Load() || len(dst) == 0 {
		return 0
	}

	length := uint64(len(dst))
	firstPage := off / PageSize
	lastPage := (off + length) / PageSize

	read := 0
	for pageNo := firstPage; pageNo <= lastPage; pageNo++ {
		fr := c.acquire(pageNo, true)
		if fr == nil {
			break
		}

		avail := fr.avail
		var n int
		switch {
		case pageNo == firstPage:
			pageOff := int(off % PageSize)
			if pageOff < avail {
				n = min(len(dst)-read, avail-pageOff)
			}
			copy(dst[read:read+n], fr.data[pageOff:pageOff+n])
		case pageNo == lastPage:
			n = min(int((off+length)%PageSize), avail)
			copy(dst[read:read+n], fr.data[:n])
		default:
			n = min(PageSize, avail)
			copy(dst[read:read+n], fr.data[:n])
		}
		fr.mu.RUnlock()

		read += n
	}

	c.bytesRead.Add(uint64(read))
	return read
}

// readAlignedPage copies the available bytes of one page.
func (c *Cache) readAlignedPage(pageNo uint64, dst []byte) int {
	if c.closed.Load() {
		return 0
	}
	fr := c.acquire(pageNo, true)
	if fr == nil {
		return 0
	}
	n := fr.avail
	copy(dst[:n], fr.data[:n])
	fr.mu.RUnlock()

	c.bytesRead.Add(uint64(n))
	return n
}

// Write copies len(src) bytes from src into the cache starting at off.
// Partial first and last pages are fetched before being overwritten so
// surrounding bytes survive; full pages are overwritten without a disk
// read. Every touched page becomes dirty. Returns 0 after Close or in
// read-only mode.
func (c *Cache) Write(off uint64, src []byte) int {
	if c.closed.Load() || c.file.ReadOnly() || len(src) == 0 {
		return 0
	}

	length := uint64(len(src))
	firstPage := off / PageSize
	lastPage := (off + length - 1) / PageSize

	written := 0
	for pageNo := firstPage; pageNo <= lastPage; pageNo++ {
		var pageOff, n int
		switch {
		case pageNo == firstPage:
			pageOff = int(off % PageSize)
			n = min(len(src), PageSize-pageOff)
		case pageNo == lastPage:
			pageOff = 0
			n = len(src) - written
		default:
			pageOff = 0
			n = PageSize
		}

		// Fetch-before-write: only partial pages need their on-disk
		// content preserved.
		fetch := pageOff != 0 || n != PageSize
		fr := c.acquireExclusive(pageNo, fetch)
		if fr == nil {
			break
		}

		copy(fr.data[pageOff:pageOff+n], src[written:written+n])
		fr.state = pageDirty
		fr.avail = max(fr.avail, pageOff+n)
		fr.mu.Unlock()

		written += n
	}

	c.bytesWritten.Add(uint64(written))
	return written
}

// Flush writes every dirty resident page back in ascending page order
// and syncs the block layer. It returns ErrFlushFailed if any page
// could not be persisted.
func (c *Cache) Flush() error {
	if c.closed.Load() {
		return blockio.ErrClosed
	}
	return c.flush()
}

func (c *Cache) flush() error {
	if c.file.ReadOnly() {
		return nil
	}

	c.mu.Lock()
	frames := make([]*frame, 0, c.lru.Len())
	for e := c.lru.Front(); e != nil; e = e.Next() {
		frames = append(frames, e.Value.(*frame))
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].pageNo < frames[j].pageNo })

	ok := true
	for _, fr := range frames {
		fr.mu.Lock()
		if fr.state == pageDirty {
			if !c.persist(fr) {
				ok = false
			}
		}
		fr.mu.Unlock()
	}
	c.mu.Unlock()

	if err := c.file.Sync(); err != nil {
		return err
	}
	if !ok {
		return ErrFlushFailed
	}
	return nil
}

// persist writes one frame back to the block layer. Caller holds the
// frame lock exclusively.
func (c *Cache) persist(fr *frame) bool {
	n, err := c.file.WritePage(fr.pageNo, fr.data)
	if err != nil || n != PageSize {
		return false
	}
	fr.state = pageClean
	return true
}

// Close flushes dirty frames (unless read-only), closes the block layer
// and releases the pool. It is idempotent.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	flushErr := c.flush()

	if err := c.file.Close(); err != nil {
		return err
	}

	c.mu.Lock()
	c.pool = nil
	c.buf = nil
	c.pages = nil
	c.lru = list.New()
	c.allocated = 0
	c.mu.Unlock()

	return flushErr
}

// IsOpen reports whether the cache is usable.
func (c *Cache) IsOpen() bool {
	return !c.closed.Load() && c.file.IsOpen()
}

// ReadOnly reports whether the underlying file is read-only.
func (c *Cache) ReadOnly() bool {
	return c.file.ReadOnly()
}

// FileSize returns the length of the underlying file. Bytes sitting in
// dirty pages past the current end of file are materialized on flush.
func (c *Cache) FileSize() uint64 {
	size, err := c.file.Size()
	if err != nil {
		return 0
	}
	return size
}

// Stats returns a snapshot of the access counters.
func (c *Cache) Stats() Stats {
	requests := c.requests.Load()
	misses := c.misses.Load()
	return Stats{
		Requests:     requests,
		Hits:         requests - misses,
		Misses:       misses,
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
	}
}

// ResetStats zeroes the access counters.
func (c *Cache) ResetStats() {
	c.requests.Store(0)
	c.misses.Store(0)
	c.bytesRead.Store(0)
	c.bytesWritten.Store(0)
}

// acquire returns the frame for pageNo locked shared, loading the page
// on a miss. It retries when the frame was repurposed between lookup
// and lock.
func (c *Cache) acquire(pageNo uint64, fetch bool) *frame {
	for {
		fr, claimed := c.lookup(pageNo, fetch)
		if fr == nil {
			return nil
		}
		if claimed {
			// Downgrade: the freshly loaded frame is locked
			// exclusively; readers want it shared.
			fr.mu.Unlock()
		}
		fr.mu.RLock()
		if fr.pageNo == pageNo {
			return fr
		}
		fr.mu.RUnlock()
	}
}

// acquireExclusive returns the frame for pageNo locked exclusively.
func (c *Cache) acquireExclusive(pageNo uint64, fetch bool) *frame {
	for {
		fr, claimed := c.lookup(pageNo, fetch)
		if fr == nil {
			return nil
		}
		if claimed {
			return fr
		}
		fr.mu.Lock()
		if fr.pageNo == pageNo {
			return fr
		}
		fr.mu.Unlock()
	}
}

// lookup finds the resident frame for pageNo or claims one for it. On a
// hit the frame is spliced to the front of the recency list and
// returned unlocked (claimed=false); callers lock it and re-check
// pageNo. On a miss the frame is claimed under its exclusive lock,
// optionally filled from disk, and returned still locked
// (claimed=true) so no reader can observe an unfetched frame.
func (c *Cache) lookup(pageNo uint64, fetch bool) (*frame, bool) {
	c.requests.Add(1)

	c.mu.Lock()
	if fr, ok := c.pages[pageNo]; ok {
		c.lru.MoveToFront(fr.elem)
		c.mu.Unlock()
		return fr, false
	}

	c.misses.Add(1)

	fr := c.freeFrame()
	if fr == nil {
		c.mu.Unlock()
		return nil, false
	}

	// Claim the frame for the new page before releasing the cache lock
	// so concurrent lookups of the same page find it and wait on its
	// lock instead of loading it twice.
	fr.mu.Lock()
	fr.pageNo = pageNo
	fr.state = pageClean
	fr.avail = 0
	fr.elem = c.lru.PushFront(fr)
	c.pages[pageNo] = fr
	c.mu.Unlock()

	if fetch {
		clear(fr.data)
		n, err := c.file.ReadPage(pageNo, fr.data)
		if err != nil {
			n = 0
		}
		fr.avail = n
	}

	return fr, true
}

// freeFrame hands out an unused pool frame, or evicts the least
// recently used one. A dirty victim is persisted before reuse. Caller
// holds the cache lock.
func (c *Cache) freeFrame() *frame {
	if c.allocated < len(c.pool) {
		fr := &c.pool[c.allocated]
		c.allocated++
		return fr
	}

	back := c.lru.Back()
	if back == nil {
		return nil
	}
	fr := back.Value.(*frame)
	c.lru.Remove(back)
	delete(c.pages, fr.pageNo)

	fr.mu.Lock()
	if fr.state == pageDirty {
		c.persist(fr)
	}
	fr.pageNo = noPage
	fr.avail = 0
	fr.elem = nil
	fr.mu.Unlock()

	return fr
}
