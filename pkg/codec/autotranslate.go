package codec

const (
	// AutoTranslateMarker follows StructureStart for an auto-translate reference.
	AutoTranslateMarker byte = 0x2E

	// MinAutoTranslateSize is the smallest buffer the auto-translate decoder
	// accepts: marker(2) + length(1) + category(1) + id(1) + terminator(1).
	MinAutoTranslateSize = 6

	// autoTranslateLengthOffset holds the payload length (category + id bytes).
	autoTranslateLengthOffset = 2

	// autoTranslateOverhead is the marker pair plus the length byte itself.
	autoTranslateOverhead = 3

	autoTranslateCategoryOffset = 3
	autoTranslateIDOffset       = 4
)

// isAutoTranslate reports whether b is long enough and opens with the
// auto-translate marker.
func isAutoTranslate(b []byte) bool {
	return len(b) >= MinAutoTranslateSize && b[0] == StructureStart && b[1] == AutoTranslateMarker
}

// autoTranslateLength returns the number of bytes an auto-translate reference
// occupies, not counting its terminator byte.
func autoTranslateLength(b []byte) int {
	if len(b) <= autoTranslateLengthOffset {
		return 0
	}
	return int(b[autoTranslateLengthOffset]) + autoTranslateOverhead
}

// decodeAutoTranslate decodes a buffer trimmed to autoTranslateLength.
func decodeAutoTranslate(b []byte) (Segment, bool) {
	if len(b) <= autoTranslateCategoryOffset || b[0] != StructureStart || b[1] != AutoTranslateMarker {
		return Segment{}, false
	}
	end := int(b[autoTranslateLengthOffset]) + autoTranslateOverhead
	if end > len(b) || end < autoTranslateIDOffset {
		return Segment{}, false
	}
	id, ok := BigEndianID(b[autoTranslateIDOffset:end])
	if !ok {
		return Segment{}, false
	}
	return AutoTranslate(b[autoTranslateCategoryOffset], id), true
}

// scanAutoTranslate tries to decode an auto-translate reference at the start
// of b. The minimum size is checked against b itself, which still includes
// the terminator byte.
func scanAutoTranslate(b []byte) (int, Segment, bool) {
	if !isAutoTranslate(b) {
		return 0, Segment{}, false
	}
	n := autoTranslateLength(b)
	if n == 0 || n > len(b) {
		return 0, Segment{}, false
	}
	seg, ok := decodeAutoTranslate(b[:n])
	if !ok {
		return 0, Segment{}, false
	}
	return n, seg, true
}

// BigEndianID reconstructs an unsigned integer from b, most significant byte
// first. Ids wider than 8 bytes keep their low 64 bits. An empty slice does
// not decode.
func BigEndianID(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var id uint64
	for _, c := range b {
		id = id<<8 | uint64(c)
	}
	return id, true
}
