package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ssargent/chatlog/pkg/codec"
)

// ChunkReader provides indexed and sequential access to records in a chunk file
type ChunkReader struct {
	file      *os.File
	ends      []uint32 // exclusive end of each record, relative to dataStart
	dataStart int64
	next      int
	config    ChunkReaderConfig
}

// NewChunkReader opens a chunk file and validates its offset table
func NewChunkReader(config ChunkReaderConfig) (*ChunkReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	ends, err := readOffsetTable(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", config.FilePath, err)
	}

	return &ChunkReader{
		file:      file,
		ends:      ends,
		dataStart: ChunkHeaderSize + int64(len(ends))*offsetSize,
		config:    config,
	}, nil
}

func readOffsetTable(r io.ReaderAt, size int64) ([]uint32, error) {
	header := make([]byte, ChunkHeaderSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		if err == io.EOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	first := binary.LittleEndian.Uint32(header[0:4])
	last := binary.LittleEndian.Uint32(header[4:8])
	if last < first {
		return nil, ErrCorruption
	}

	count := int64(last - first)
	dataStart := ChunkHeaderSize + count*offsetSize
	if dataStart > size {
		return nil, ErrCorruption
	}

	table := make([]byte, count*offsetSize)
	if _, err := r.ReadAt(table, ChunkHeaderSize); err != nil && err != io.EOF {
		return nil, err
	}

	ends := make([]uint32, count)
	var prev uint32
	for i := range ends {
		end := binary.LittleEndian.Uint32(table[i*offsetSize:])
		if end < prev || dataStart+int64(end) > size {
			return nil, ErrCorruption
		}
		ends[i] = end
		prev = end
	}

	return ends, nil
}

// Len returns the number of records in the chunk
func (r *ChunkReader) Len() int {
	return len(r.ends)
}

// ReadAt reads the record at index i
func (r *ChunkReader) ReadAt(i int) (codec.RawRecord, error) {
	if i < 0 || i >= len(r.ends) {
		return nil, ErrOutOfRange
	}

	var start uint32
	if i > 0 {
		start = r.ends[i-1]
	}
	size := int(r.ends[i] - start)
	if r.config.MaxRecordSize > 0 && size > r.config.MaxRecordSize {
		return nil, fmt.Errorf("record %d is %d bytes: %w", i, size, ErrRecordTooLarge)
	}

	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	if _, err := r.file.ReadAt(buf, r.dataStart+int64(start)); err != nil {
		if err == io.EOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	return buf, nil
}

// ReadNext reads the record after the previous one, returning io.EOF at the end
func (r *ChunkReader) ReadNext() (codec.RawRecord, error) {
	if r.next >= len(r.ends) {
		return nil, io.EOF
	}
	rec, err := r.ReadAt(r.next)
	if err != nil {
		return nil, err
	}
	r.next++
	return rec, nil
}

// Seek sets the index returned by the next ReadNext
func (r *ChunkReader) Seek(i int) error {
	if i < 0 || i > len(r.ends) {
		return ErrOutOfRange
	}
	r.next = i
	return nil
}

// Offset returns the index of the next record ReadNext will return
func (r *ChunkReader) Offset() int {
	return r.next
}

// Iterator returns a streaming iterator over all records from the start
func (r *ChunkReader) Iterator() RecordIterator {
	return &chunkRecordIterator{reader: r, index: -1}
}

// Close closes the chunk reader
func (r *ChunkReader) Close() error {
	return r.file.Close()
}

// chunkRecordIterator implements RecordIterator for streaming access
type chunkRecordIterator struct {
	reader *ChunkReader
	index  int
	record codec.RawRecord
	err    error
}

func (it *chunkRecordIterator) Next() bool {
	if it.err != nil || it.index+1 >= it.reader.Len() {
		return false
	}
	it.index++
	it.record, it.err = it.reader.ReadAt(it.index)
	return it.err == nil
}

func (it *chunkRecordIterator) Index() int {
	return it.index
}

func (it *chunkRecordIterator) Record() codec.RawRecord {
	return it.record
}

func (it *chunkRecordIterator) Err() error {
	return it.err
}

func (it *chunkRecordIterator) Close() error {
	// The reader is owned by the caller
	return nil
}
