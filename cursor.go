package recordfile

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/recordfile/internal/hash"
)

// Cursor is a position in the live record list. It carries a snapshot
// of the record's header taken when the cursor was created or last
// moved; IsValid detects when the underlying record has been removed
// or rewritten since.
//
// A cursor does not own the store and must not be used after the store
// is closed. Independent cursors are safe concurrent users of the same
// store; a single cursor must not be shared between goroutines.
type Cursor struct {
	mu     sync.RWMutex
	store  *Store
	header recordHeader
	pos    uint64
}

// Position returns the record offset, or NotFound for an invalidated
// cursor.
func (c *Cursor) Position() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// DataLength returns the payload length of the snapshot header.
func (c *Cursor) DataLength() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pos == NotFound {
		return 0
	}
	return c.header.dataLength
}

// Capacity returns the reserved payload size of the record's slot.
func (c *Cursor) Capacity() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pos == NotFound {
		return 0
	}
	return c.header.capacity
}

// NextPosition returns the offset of the next live record, or NotFound.
func (c *Cursor) NextPosition() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pos == NotFound {
		return NotFound
	}
	return c.header.next
}

// PrevPosition returns the offset of the previous live record, or
// NotFound.
func (c *Cursor) PrevPosition() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pos == NotFound {
		return NotFound
	}
	return c.header.previous
}

// invalidate clears the cursor. Caller holds c.mu exclusively.
func (c *Cursor) invalidate() {
	c.pos = NotFound
	c.header = recordHeader{next: NotFound, previous: NotFound}
}

// IsValid re-reads the record header and reports whether the cursor
// still points at the same live, uncorrupted record.
func (c *Cursor) IsValid() bool {
	s := c.store
	if !s.open.Load() {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.pos == NotFound {
		return false
	}

	s.mu.RLock()
	s.locks.RLock(c.pos)
	current, err := s.readRecordHeader(c.pos)
	s.locks.RUnlock(c.pos)
	s.mu.RUnlock()

	if err != nil || current.deleted() {
		return false
	}
	return current.headChecksum == c.header.headChecksum
}

// Seek repositions the cursor at the record at offset.
func (c *Cursor) Seek(offset uint64) error {
	s := c.store
	if !s.open.Load() {
		return ErrClosed
	}
	if offset == NotFound || offset < StorageHeaderSize {
		return fmt.Errorf("%w: offset %d", ErrInvalidArgument, offset)
	}

	s.mu.RLock()
	s.locks.RLock(offset)
	header, err := s.readRecordHeader(offset)
	s.locks.RUnlock(offset)
	s.mu.RUnlock()

	if err != nil {
		return err
	}
	if header.deleted() {
		return ErrRecordDeleted
	}

	c.mu.Lock()
	c.header = header
	c.pos = offset
	c.mu.Unlock()
	return nil
}

// Next moves the cursor to the next live record. It returns false at
// the tail of the list or when the cursor is invalid.
func (c *Cursor) Next() bool {
	return c.step(func(h *recordHeader) uint64 { return h.next })
}

// Previous moves the cursor to the previous live record. It returns
// false at the head of the list or when the cursor is invalid.
func (c *Cursor) Previous() bool {
	return c.step(func(h *recordHeader) uint64 { return h.previous })
}

// step re-reads the current header and follows one of its links, so
// traversal sees neighbor relinks done after the snapshot was taken.
func (c *Cursor) step(link func(*recordHeader) uint64) bool {
	s := c.store
	if !s.open.Load() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pos == NotFound {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.locks.RLock(c.pos)
	current, err := s.readRecordHeader(c.pos)
	s.locks.RUnlock(c.pos)
	if err != nil || current.deleted() {
		return false
	}

	target := link(&current)
	if target == NotFound {
		return false
	}

	s.locks.RLock(target)
	header, err := s.readRecordHeader(target)
	s.locks.RUnlock(target)
	if err != nil || header.deleted() {
		return false
	}

	c.header = header
	c.pos = target
	return true
}

// Data reads the record payload, validates its checksum against the
// snapshot header and returns it in a fresh buffer.
func (c *Cursor) Data() ([]byte, error) {
	s := c.store
	start := time.Now()
	data, err := c.data()
	s.metrics.RecordRead(len(data), time.Since(start), err)
	return data, err
}

func (c *Cursor) data() ([]byte, error) {
	s := c.store
	if !s.open.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.pos == NotFound {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.locks.RLock(c.pos)
	defer s.locks.RUnlock(c.pos)

	data := make([]byte, c.header.dataLength)
	if n := s.cache.Read(c.pos+RecordHeaderSize, data); n != len(data) {
		return nil, fmt.Errorf("read record data at %d: %w", c.pos, ErrShortIO)
	}

	if sum := hash.Adler32(data); sum != c.header.dataChecksum {
		return nil, newDataChecksumError(c.pos, c.header.dataChecksum, sum)
	}
	return data, nil
}

// SetData overwrites the record payload. When data fits the slot
// capacity the record is updated in place; otherwise it is relocated
// to a slot of sufficient capacity and the cursor's position changes.
func (c *Cursor) SetData(data []byte) error {
	s := c.store
	start := time.Now()
	relocated, err := c.setData(data)
	s.metrics.RecordUpdate(relocated, time.Since(start), err)
	s.logger.LogUpdate(c.Position(), relocated, err)
	return err
}

func (c *Cursor) setData(data []byte) (bool, error) {
	s := c.store
	if !s.open.Load() {
		return false, ErrClosed
	}
	if s.cache.ReadOnly() {
		return false, ErrReadOnly
	}
	if data == nil {
		return false, fmt.Errorf("%w: nil data", ErrInvalidArgument)
	}
	if len(data) == 0 {
		return false, ErrCapacityExhausted
	}
	if uint64(len(data)) > MaxRecordSize {
		return false, fmt.Errorf("%w: record larger than 4 GiB", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pos == NotFound {
		return false, ErrNotFound
	}

	if uint32(len(data)) <= c.header.capacity {
		return false, c.updateInPlace(data)
	}
	return true, c.relocate(data)
}

// updateInPlace rewrites payload and header inside the current slot.
// Caller holds c.mu exclusively.
func (c *Cursor) updateInPlace(data []byte) error {
	s := c.store

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.locks.Lock(c.pos)
	defer s.locks.Unlock(c.pos)

	header, err := s.readRecordHeader(c.pos)
	if err != nil {
		return err
	}
	if header.deleted() {
		return ErrRecordDeleted
	}

	header.dataLength = uint32(len(data))
	header.dataChecksum = hash.Adler32(data)
	if err := s.writeRecord(c.pos, &header, data); err != nil {
		return err
	}

	c.header = header
	return nil
}

// relocate moves the record to a new slot with enough capacity,
// rewires its live-list neighbors and frees the old slot. Caller holds
// c.mu exclusively.
func (c *Cursor) relocate(data []byte) error {
	s := c.store

	s.mu.Lock()
	defer s.mu.Unlock()

	oldPos := c.pos
	header, err := s.readRecordHeader(oldPos)
	if err != nil {
		return err
	}
	if header.deleted() {
		return ErrRecordDeleted
	}

	left, right := header.previous, header.next

	newPos, newHeader, err := s.allocateRecord(data, false, left, right)
	if err != nil {
		return err
	}

	if err := s.addRecordToFreeList(oldPos, &header); err != nil {
		return err
	}

	if left != NotFound {
		leftHeader, err := s.readRecordHeader(left)
		if err != nil {
			return err
		}
		leftHeader.next = newPos
		if err := s.writeRecordHeader(left, &leftHeader); err != nil {
			return err
		}
	}
	if right != NotFound {
		rightHeader, err := s.readRecordHeader(right)
		if err != nil {
			return err
		}
		rightHeader.previous = newPos
		if err := s.writeRecordHeader(right, &rightHeader); err != nil {
			return err
		}
	}

	s.headerMu.Lock()
	if left == NotFound {
		s.header.firstRecord = newPos
	}
	if right == NotFound {
		s.header.lastRecord = newPos
	}
	err = s.writeStorageHeader()
	s.headerMu.Unlock()
	if err != nil {
		return err
	}

	c.header = newHeader
	c.pos = newPos
	return nil
}
