package codec

import (
	"bytes"
	"strings"
)

const (
	// HeaderSize is the fixed size of the record header.
	// Format: [Timestamp(4, LE)][EntryType(1)][unused(3)]
	HeaderSize = 8

	// SenderOffset is where the sender field starts. Byte 8 sits between the
	// header and the sender and is treated as a delimiter without being checked.
	SenderOffset = 9

	// FieldDelimiter separates the sender field from the message body.
	FieldDelimiter byte = 0x3A

	entryTypeOffset = 4
)

// RawRecord is one undecoded log record.
type RawRecord []byte

// RecordParts is a framed record: header, sender and message as owned copies.
type RecordParts struct {
	Header  []byte // Exactly HeaderSize bytes
	Sender  []byte // Sender field, possibly empty
	Message []byte // Everything after the field delimiter
}

// Split frames a raw record into its header, sender and message.
// It reports false when the record is too short or carries no field delimiter.
func Split(raw []byte) (RecordParts, bool) {
	header, ok := headerOf(raw)
	if !ok {
		return RecordParts{}, false
	}

	colon, ok := delimiterIndex(raw)
	if !ok {
		return RecordParts{}, false
	}

	return RecordParts{
		Header:  header,
		Sender:  clone(raw[SenderOffset:colon]),
		Message: clone(raw[colon+1:]),
	}, true
}

// Parts frames the record. See Split.
func (r RawRecord) Parts() (RecordParts, bool) {
	return Split(r)
}

// Text returns the record body after the field delimiter as lossy UTF-8,
// with carriage returns rewritten to newlines.
func (r RawRecord) Text() (string, bool) {
	colon, ok := delimiterIndex(r)
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(lossyString(r[colon+1:]), "\r", "\n"), true
}

func headerOf(raw []byte) ([]byte, bool) {
	if len(raw) < HeaderSize {
		return nil, false
	}
	return clone(raw[:HeaderSize]), true
}

// delimiterIndex returns the absolute offset of the first field delimiter at
// or after SenderOffset.
func delimiterIndex(raw []byte) (int, bool) {
	if len(raw) <= SenderOffset {
		return 0, false
	}
	i := bytes.IndexByte(raw[SenderOffset:], FieldDelimiter)
	if i < 0 {
		return 0, false
	}
	return SenderOffset + i, true
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
