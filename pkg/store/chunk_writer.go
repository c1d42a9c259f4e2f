package store

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// ChunkWriter collects records and writes them as one chunk file on Close.
// The offset table precedes the data, so nothing is written until then.
type ChunkWriter struct {
	config ChunkWriterConfig
	data   []byte
	ends   []uint32
	closed bool
	mutex  sync.Mutex
}

// NewChunkWriter creates a chunk writer for the configured path
func NewChunkWriter(config ChunkWriterConfig) (*ChunkWriter, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}
	return &ChunkWriter{config: config}, nil
}

// Append adds a raw record and returns its index within the chunk
func (w *ChunkWriter) Append(record []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if uint64(len(w.data))+uint64(len(record)) > math.MaxUint32 {
		return 0, ErrRecordTooLarge
	}

	w.data = append(w.data, record...)
	w.ends = append(w.ends, uint32(len(w.data)))
	return len(w.ends) - 1, nil
}

// Len returns the number of records appended so far
func (w *ChunkWriter) Len() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.ends)
}

// Close writes the chunk to a temporary file and renames it into place
func (w *ChunkWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	tmp, err := os.CreateTemp(filepath.Dir(w.config.FilePath), ".chunk-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := w.writeTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, w.config.FilePath)
}

func (w *ChunkWriter) writeTo(f *os.File) error {
	bw := bufio.NewWriter(f)

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], w.config.FirstIndex)
	if _, err := bw.Write(word[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(word[:], w.config.FirstIndex+uint32(len(w.ends)))
	if _, err := bw.Write(word[:]); err != nil {
		return err
	}

	for _, end := range w.ends {
		binary.LittleEndian.PutUint32(word[:], end)
		if _, err := bw.Write(word[:]); err != nil {
			return err
		}
	}

	if _, err := bw.Write(w.data); err != nil {
		return err
	}

	return bw.Flush()
}

// Path returns the file path
func (w *ChunkWriter) Path() string {
	return w.config.FilePath
}
