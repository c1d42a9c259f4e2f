package store

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/chatlog/pkg/codec"
)

func writeChunk(t *testing.T, records ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "00000001.log")

	w, err := NewChunkWriter(ChunkWriterConfig{FilePath: path, FirstIndex: 100})
	require.NoError(t, err)
	for i, rec := range records {
		idx, err := w.Append(rec)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	require.NoError(t, w.Close())
	return path
}

func TestChunk_RoundTrip(t *testing.T) {
	records := [][]byte{
		codec.EncodeRecord(1700000000, 0x0A, []byte("alice"), []byte("hello")),
		codec.EncodeRecord(1700000001, 0x0B, nil, codec.AppendAutoTranslate(nil, 5, 123)),
		{},
		codec.EncodeRecord(1700000002, 0x0A, []byte("bob"), []byte("bye")),
	}
	path := writeChunk(t, records...)

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer reader.Close()

	require.Equal(t, len(records), reader.Len())
	for i, want := range records {
		got, err := reader.ReadAt(i)
		require.NoError(t, err)
		assert.Equal(t, codec.RawRecord(want), got)
	}
}

func TestChunk_Header(t *testing.T) {
	path := writeChunk(t, []byte("abc"), []byte("de"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(102), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(data[12:16]))
	assert.Equal(t, []byte("abcde"), data[16:])
}

func TestChunkReader_ReadNext(t *testing.T) {
	path := writeChunk(t, []byte("one"), []byte("two"))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer reader.Close()

	rec, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, codec.RawRecord("one"), rec)
	assert.Equal(t, 1, reader.Offset())

	rec, err = reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, codec.RawRecord("two"), rec)

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, reader.Seek(1))
	rec, err = reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, codec.RawRecord("two"), rec)

	assert.Equal(t, ErrOutOfRange, reader.Seek(3))
}

func TestChunkReader_Iterator(t *testing.T) {
	path := writeChunk(t, []byte("a"), []byte("b"), []byte("c"))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	defer it.Close()

	var got []string
	var indexes []int
	for it.Next() {
		got = append(got, string(it.Record()))
		indexes = append(indexes, it.Index())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []int{0, 1, 2}, indexes)
}

func TestChunkReader_MaxRecordSize(t *testing.T) {
	path := writeChunk(t, []byte("tiny"), []byte("much too large"))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path, MaxRecordSize: 8})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadAt(0)
	assert.NoError(t, err)

	_, err = reader.ReadAt(1)
	assert.True(t, errors.Is(err, ErrRecordTooLarge))

	it := reader.Iterator()
	assert.True(t, it.Next())
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Err(), ErrRecordTooLarge))
}

func TestChunkReader_OutOfRange(t *testing.T) {
	path := writeChunk(t, []byte("a"))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadAt(-1)
	assert.Equal(t, ErrOutOfRange, err)
	_, err = reader.ReadAt(1)
	assert.Equal(t, ErrOutOfRange, err)
}

func TestChunkReader_Corruption(t *testing.T) {
	le := func(vals ...uint32) []byte {
		var out []byte
		for _, v := range vals {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
		return out
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty file", data: nil},
		{name: "short header", data: []byte{1, 2, 3}},
		{name: "last before first", data: le(5, 4)},
		{name: "table past end of file", data: le(0, 10)},
		{name: "decreasing offsets", data: append(le(0, 2, 3, 1), []byte("abc")...)},
		{name: "offset past end of file", data: append(le(0, 1, 9), []byte("abc")...)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.log")
			require.NoError(t, os.WriteFile(path, tc.data, 0600))

			reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
			assert.Nil(t, reader)
			assert.True(t, errors.Is(err, ErrCorruption), "got %v", err)
		})
	}
}

func TestNewChunkReader_NonExistentFile(t *testing.T) {
	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: "/non/existent/file.log"})
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestChunkWriter_AppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.log")
	w, err := NewChunkWriter(ChunkWriterConfig{FilePath: path})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Append([]byte("late"))
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, path, w.Path())

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer reader.Close()
	assert.Zero(t, reader.Len())
}
