package codec

// structureDecoder tries to decode one sub-structure at the start of a buffer,
// returning how many bytes it occupies excluding the terminator byte.
type structureDecoder func(b []byte) (int, Segment, bool)

// structureDecoders maps the byte after StructureStart to its decoder.
var structureDecoders = map[byte]structureDecoder{
	NameMarker:          scanName,
	AutoTranslateMarker: scanAutoTranslate,
}

// ScanMessage splits a message body into segments. Embedded sub-structures
// that cannot be decoded are kept as literal bytes, so scanning never fails.
func ScanMessage(message []byte) []Segment {
	var (
		segments []Segment
		literal  []byte
	)

	flush := func() {
		if len(literal) == 0 {
			return
		}
		segments = append(segments, PlainText(lossyString(literal)))
		literal = literal[:0]
	}

	for i := 0; i < len(message); {
		if message[i] == StructureStart {
			if n, seg, ok := scanStructure(message[i:]); ok {
				flush()
				segments = append(segments, seg)
				// Skip the terminator byte that follows every sub-structure.
				i += n + 1
				continue
			}
		}
		literal = append(literal, message[i])
		i++
	}
	flush()

	return segments
}

func scanStructure(b []byte) (int, Segment, bool) {
	if len(b) < 2 {
		return 0, Segment{}, false
	}
	decode, ok := structureDecoders[b[1]]
	if !ok {
		return 0, Segment{}, false
	}
	return decode(b)
}
