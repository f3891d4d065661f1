package blockio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recordfile/internal/fs"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "blockio.db")
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(nil, "", false, 0o644)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestOpen_ReadOnlyMissing(t *testing.T) {
	_, err := Open(nil, tempPath(t), true, 0o644)
	assert.Error(t, err)
}

func TestOpen_CreatesFile(t *testing.T) {
	path := tempPath(t)
	f, err := Open(nil, path, false, 0o644)
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.IsOpen())
	assert.False(t, f.ReadOnly())

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)
}

func TestWriteReadPage(t *testing.T) {
	path := tempPath(t)
	f, err := Open(nil, path, false, 0o644)
	require.NoError(t, err)
	defer f.Close()

	page := bytes.Repeat([]byte{0xAB}, PageSize)
	n, err := f.WritePage(3, page)
	require.NoError(t, err)
	assert.Equal(t, PageSize, n)

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(4*PageSize), size, "write at page 3 extends the file")

	buf := make([]byte, PageSize)
	n, err = f.ReadPage(3, buf)
	require.NoError(t, err)
	assert.Equal(t, PageSize, n)
	assert.Equal(t, page, buf)
}

func TestReadPage_ShortAtEOF(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	f, err := Open(nil, path, true, 0o644)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, PageSize)
	n, err := f.ReadPage(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, []byte("hello world"), buf[:n])

	// A page entirely past EOF reads zero bytes without error.
	n, err = f.ReadPage(5, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWritePage_ReadOnly(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, err := Open(nil, path, true, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WritePage(0, make([]byte, PageSize))
	assert.ErrorIs(t, err, ErrReadOnly)

	// Sync on a read-only file is a no-op.
	assert.NoError(t, f.Sync())
}

func TestClose_Idempotent(t *testing.T) {
	f, err := Open(nil, tempPath(t), false, 0o644)
	require.NoError(t, err)

	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
	assert.False(t, f.IsOpen())

	_, err = f.ReadPage(0, make([]byte, PageSize))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.WritePage(0, make([]byte, PageSize))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Size()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Sync(), ErrClosed)
}

func TestSync_FaultInjection(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)

	f, err := Open(faulty, tempPath(t), false, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WritePage(0, make([]byte, PageSize))
	require.NoError(t, err)

	faulty.SetFault(fs.Fault{FailOnSync: true})
	assert.ErrorIs(t, f.Sync(), fs.ErrInjected)

	faulty.SetFault(fs.Fault{})
	assert.NoError(t, f.Sync())
}

func TestWritePage_FaultInjection(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)

	f, err := Open(faulty, tempPath(t), false, 0o644)
	require.NoError(t, err)
	defer f.Close()

	faulty.SetFault(fs.Fault{FailWriteAt: true})
	_, err = f.WritePage(0, make([]byte, PageSize))
	assert.ErrorIs(t, err, fs.ErrInjected)
}
