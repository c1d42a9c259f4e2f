package codec

import (
	"bytes"
	"unicode/utf8"
)

const (
	// StructureStart opens every embedded sub-structure.
	StructureStart byte = 0x02

	// NameMarker follows StructureStart for a name reference.
	NameMarker byte = 0x27

	// StructureEnd terminates a sub-structure. The scanner skips it.
	StructureEnd byte = 0x03

	// MinNameSize is the smallest buffer the name decoder accepts.
	MinNameSize = 22

	// nameLengthOffset holds a length byte; the real name ends at value+2.
	nameLengthOffset = 2

	// nameLengthBias converts the length byte into the real name's end offset.
	nameLengthBias = 2

	// realNameOffset is where the real name starts. Bytes 3 through 8 are
	// opaque reserved bytes and are never interpreted.
	realNameOffset = 9
)

var nameMarker = []byte{StructureStart, NameMarker}

// isName reports whether b is long enough and opens with the name marker.
func isName(b []byte) bool {
	return len(b) >= MinNameSize && b[0] == StructureStart && b[1] == NameMarker
}

// nameLength returns the number of bytes a name reference occupies, not
// counting its final terminator byte. It returns 0 when the closing marker
// or the terminator cannot be found.
func nameLength(b []byte) int {
	if len(b) < len(nameMarker) {
		return 0
	}
	endPos := bytes.Index(b[2:], nameMarker)
	if endPos < 0 {
		return 0
	}
	lastThree := bytes.IndexByte(b[2+endPos:], StructureEnd)
	if lastThree < 0 {
		return 0
	}
	return 2 + endPos + lastThree
}

// decodeName decodes a name reference payload. Both names must be valid
// UTF-8; there is no lossy fallback.
func decodeName(b []byte) (Segment, bool) {
	if !isName(b) {
		return Segment{}, false
	}

	realEnd := int(b[nameLengthOffset]) + nameLengthBias
	if realEnd < realNameOffset || realEnd >= len(b) {
		return Segment{}, false
	}

	i := bytes.IndexByte(b[realEnd:], StructureStart)
	if i < 0 {
		return Segment{}, false
	}
	displayEnd := realEnd + i
	if displayEnd < realEnd+1 {
		return Segment{}, false
	}

	realName := b[realNameOffset:realEnd]
	displayName := b[realEnd+1 : displayEnd]
	if !utf8.Valid(realName) || !utf8.Valid(displayName) {
		return Segment{}, false
	}

	return Name(string(realName), string(displayName)), true
}

// DecodeName decodes a self-contained name reference such as a sender field.
func DecodeName(b []byte) (Segment, bool) {
	return decodeName(b)
}

// scanName tries to decode a name reference at the start of b.
func scanName(b []byte) (int, Segment, bool) {
	if !isName(b) {
		return 0, Segment{}, false
	}
	n := nameLength(b)
	if n == 0 || n > len(b) {
		return 0, Segment{}, false
	}
	seg, ok := decodeName(b[:n])
	if !ok {
		return 0, Segment{}, false
	}
	return n, seg, true
}
