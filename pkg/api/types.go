package api

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/chatlog/pkg/archive"
	"github.com/ssargent/chatlog/pkg/codec"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DecodedEntry is a decoded record as returned by the API
type DecodedEntry struct {
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
	codec.Entry
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Address string
	// APIKey protects /api/v1. Empty disables authentication.
	APIKey string
	// MaxBodySize caps request bodies in bytes
	MaxBodySize int64
	// MetricsInterval controls how often archive gauges refresh
	MetricsInterval time.Duration
}

// EntryArchive is the storage the API serves entries from
type EntryArchive interface {
	PutBatch(entries []codec.Entry) ([]ksuid.KSUID, error)
	Get(id ksuid.KSUID) (archive.Record, error)
	Range(from, to time.Time, fn func(archive.Record) error) error
	Search(query string, limit int) ([]archive.Record, error)
	Stats() (archive.Stats, error)
}

func newDecodedEntry(id string, entry codec.Entry) *DecodedEntry {
	return &DecodedEntry{
		ID:    id,
		Time:  entry.Time(),
		Text:  entry.Message.DisplayText(),
		Entry: entry,
	}
}

func fromRecord(rec archive.Record) *DecodedEntry {
	return newDecodedEntry(rec.ID.String(), rec.Entry)
}
