// Package codec decodes binary chat-log records into structured entries.
//
// The codec package turns one raw record, as stored by legacy instant-messenger
// clients, into a timestamp, an entry type, an optional sender and an ordered
// message body. It performs no I/O; callers supply one record buffer at a time.
//
// # Record Format
//
// Records have no outer length field. They are framed by fixed offsets and a
// delimiter byte:
//
//	[Timestamp(4)][EntryType(1)][unused(3)][separator(1)][Sender][0x3A][Message]
//
// Fields:
//   - Timestamp: 32-bit Unix time in seconds (little-endian)
//   - EntryType: channel or event code, passed through uninterpreted
//   - separator: byte 8, never validated
//   - Sender: plain UTF-8 text or an embedded name reference, possibly empty
//   - Message: free text with embedded sub-structures
//
// The sender ends at the first colon at or after offset 9. Records shorter
// than the header, or without a colon, do not decode.
//
// # Sub-structures
//
// Message bodies may embed binary sub-structures, each opened by 0x02 and a
// marker byte and followed by a 0x03 terminator:
//
//	Name:           0x02 0x27 [len] [reserved(6)] [real name] [sep] [display name] 0x02 0x27 ... 0x03
//	Auto-translate: 0x02 0x2E [len] [category] [id, big-endian, len-1 bytes] 0x03
//
// For a name reference the real name ends at offset len+2 and the display name
// runs from the byte after that to the next 0x02. The size of a name reference
// is found by scanning for the closing 0x02 0x27 pair and then the next 0x03.
//
// # Segments
//
// A decoded message is a sequence of segments:
//   - PlainText: literal bytes, decoded as lossy UTF-8
//   - Name: real name and display name, both strict UTF-8
//   - AutoTranslate: category code and numeric id
//
// Message.DisplayText joins the display text of every segment. Auto-translate
// references render as "<AT: category, id>".
//
// # Usage
//
//	entry, ok := codec.Decode(raw)
//	if !ok {
//	    return errUndecodable
//	}
//	fmt.Println(entry.Time(), entry.Message.DisplayText())
//
// # Error Handling
//
// Decoding degrades instead of failing. Framing problems make Decode report
// false. Inside a message, a sub-structure that is unknown, truncated or
// malformed is kept as literal text and scanning continues. A sender that is
// neither a name reference nor valid UTF-8 is dropped.
//
// # Thread Safety
//
// All functions are pure and keep no state between calls. Entries own their
// data and can be shared between goroutines.
package codec
