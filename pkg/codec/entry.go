package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Entry is a decoded log record.
type Entry struct {
	EntryType uint8    `json:"entry_type"`
	Timestamp uint32   `json:"timestamp"` // Unix seconds
	Sender    *Segment `json:"sender,omitempty"`
	Message   Message  `json:"message"`
}

// Time returns the entry timestamp as a UTC time.
func (e Entry) Time() time.Time {
	return time.Unix(int64(e.Timestamp), 0).UTC()
}

// Validate checks that every segment carries a known kind.
func (e Entry) Validate() error {
	if e.Sender != nil && !e.Sender.Kind.Valid() {
		return fmt.Errorf("sender: unknown segment kind %d", uint8(e.Sender.Kind))
	}
	for i, seg := range e.Message {
		if !seg.Kind.Valid() {
			return fmt.Errorf("message segment %d: unknown segment kind %d", i, uint8(seg.Kind))
		}
	}
	return nil
}

// Message is an ordered sequence of segments.
type Message []Segment

// DisplayText concatenates the display text of every segment.
func (m Message) DisplayText() string {
	var b strings.Builder
	for _, seg := range m {
		b.WriteString(seg.DisplayText())
	}
	return b.String()
}

// Assemble interprets framed record parts as an entry. It never fails;
// an undecodable sender is left nil.
func Assemble(parts RecordParts) Entry {
	entry := Entry{Message: ScanMessage(parts.Message)}
	if len(parts.Header) >= HeaderSize {
		entry.Timestamp = binary.LittleEndian.Uint32(parts.Header[0:4])
		entry.EntryType = parts.Header[entryTypeOffset]
	}
	entry.Sender = decodeSender(parts.Sender)
	return entry
}

// Decode frames and assembles a raw record.
func Decode(raw []byte) (Entry, bool) {
	parts, ok := Split(raw)
	if !ok {
		return Entry{}, false
	}
	return Assemble(parts), true
}

// Entry decodes the record. See Decode.
func (r RawRecord) Entry() (Entry, bool) {
	return Decode(r)
}

func decodeSender(sender []byte) *Segment {
	if len(sender) == 0 {
		return nil
	}
	if seg, ok := DecodeName(sender); ok {
		return &seg
	}
	if utf8.Valid(sender) {
		seg := Name(string(sender), string(sender))
		return &seg
	}
	return nil
}
