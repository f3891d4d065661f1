package recordfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_Accessors(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.CreateRecord([]byte("first"))
	require.NoError(t, err)
	b, err := s.CreateRecord([]byte("second"))
	require.NoError(t, err)

	assert.Equal(t, uint32(5), a.DataLength())
	assert.Equal(t, uint32(5), a.Capacity())
	assert.Equal(t, NotFound, a.PrevPosition())

	// The snapshot of a predates b; re-read it to see the new link.
	require.NoError(t, a.Seek(a.Position()))
	assert.Equal(t, b.Position(), a.NextPosition())
	assert.Equal(t, a.Position(), b.PrevPosition())
	assert.Equal(t, NotFound, b.NextPosition())
}

func TestCursor_Seek(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.CreateRecord([]byte("here"))
	require.NoError(t, err)
	b, err := s.CreateRecord([]byte("there"))
	require.NoError(t, err)

	cursor, err := s.GetFirstRecord()
	require.NoError(t, err)

	require.NoError(t, cursor.Seek(b.Position()))
	data, err := cursor.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("there"), data)

	require.NoError(t, cursor.Seek(a.Position()))
	data, err = cursor.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("here"), data)

	assert.ErrorIs(t, cursor.Seek(NotFound), ErrInvalidArgument)
	assert.ErrorIs(t, cursor.Seek(0), ErrInvalidArgument)

	// Seeking to a removed record fails and leaves the cursor in place.
	// RemoveRecord moves b to a surviving neighbor, so keep its offset.
	removed := b.Position()
	require.NoError(t, s.RemoveRecord(b))
	assert.ErrorIs(t, cursor.Seek(removed), ErrRecordDeleted)
	data, err = cursor.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("here"), data)
}

func TestCursor_IsValid(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.CreateRecord([]byte("watched"))
	require.NoError(t, err)
	assert.True(t, a.IsValid())

	// A second cursor on the same record sees the in-place update as a
	// header change and turns invalid.
	stale, err := s.GetRecord(a.Position())
	require.NoError(t, err)
	require.NoError(t, a.SetData([]byte("changed")))
	assert.True(t, a.IsValid(), "the updating cursor tracks the new header")
	assert.False(t, stale.IsValid(), "the stale snapshot no longer matches")

	// Removal invalidates every cursor on the record.
	require.NoError(t, s.RemoveRecord(a))
	assert.False(t, a.IsValid())
	assert.False(t, stale.IsValid())
}

func TestCursor_StaleTraversalStops(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.CreateRecord([]byte("a"))
	require.NoError(t, err)
	_, err = s.CreateRecord([]byte("b"))
	require.NoError(t, err)

	stale, err := s.GetRecord(a.Position())
	require.NoError(t, err)

	// Remove the record the stale cursor sits on; its links now belong
	// to the free list and must not be followed.
	require.NoError(t, s.RemoveRecord(a))
	assert.False(t, stale.Next())
	assert.False(t, stale.Previous())
}

func TestCursor_RelocatedNeighborTraversal(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.CreateRecord([]byte("stay"))
	require.NoError(t, err)
	b, err := s.CreateRecord([]byte("move"))
	require.NoError(t, err)

	// Relocate b; a's snapshot still holds b's old offset, but Next
	// re-reads a's header on disk, which now points at the new slot.
	require.NoError(t, b.SetData([]byte("moved to a larger slot elsewhere")))

	cursor, err := s.GetRecord(a.Position())
	require.NoError(t, err)
	require.True(t, cursor.Next())
	data, err := cursor.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("moved to a larger slot elsewhere"), data)
	assert.Equal(t, b.Position(), cursor.Position())
}

func TestCursor_DataAfterUpdateKeepsChecksum(t *testing.T) {
	s, _ := openStore(t)

	cursor, err := s.CreateRecord([]byte("v1"))
	require.NoError(t, err)

	require.NoError(t, cursor.SetData([]byte("v2")))
	data, err := cursor.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// A fresh cursor sees the same bytes.
	fresh, err := s.GetRecord(cursor.Position())
	require.NoError(t, err)
	data, err = fresh.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}
