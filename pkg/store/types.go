package store

import (
	"github.com/ssargent/chatlog/pkg/codec"
)

// ChunkHeaderSize is the size of the fixed chunk header.
// Format: [FirstIndex(4)][LastIndex(4)], both little-endian
const ChunkHeaderSize = 8

// offsetSize is the size of one offset table entry
const offsetSize = 4

// ChunkReaderConfig holds configuration for the chunk reader
type ChunkReaderConfig struct {
	FilePath      string // Path to the chunk file
	MaxRecordSize int    // Records larger than this are rejected (0 = no limit)
}

// ChunkWriterConfig holds configuration for the chunk writer
type ChunkWriterConfig struct {
	FilePath   string // Path of the chunk file to produce
	FirstIndex uint32 // Index of the first record, written to the header
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Index() int
	Record() codec.RawRecord
	Err() error
	Close() error
}

// Errors
var (
	ErrCorruption     = &StoreError{"chunk corruption detected"}
	ErrOutOfRange     = &StoreError{"record index out of range"}
	ErrRecordTooLarge = &StoreError{"record exceeds maximum size"}
	ErrClosed         = &StoreError{"chunk writer closed"}
)

// StoreError represents a chunk store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
