package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Bytes written into the reserved and trailing regions of a name reference.
// Decoders never read them.
var (
	nameReserved = []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	nameTrailer  = []byte{StructureStart, NameMarker, 0x07, 0xCF, 0x01, 0x01, 0x01, 0xFF, 0x01, StructureEnd}
)

// nameSeparator sits between the real name and the display name.
const nameSeparator byte = 0x03

// AppendName appends a name reference, including its terminator, to dst.
func AppendName(dst []byte, realName, displayName string) ([]byte, error) {
	size := realNameOffset + len(realName) - nameLengthBias
	if size > math.MaxUint8 {
		return dst, fmt.Errorf("real name too long: %d bytes", len(realName))
	}
	for _, s := range []string{realName, displayName} {
		for i := 0; i < len(s); i++ {
			if s[i] == StructureStart {
				return dst, fmt.Errorf("name %q contains a structure start byte", s)
			}
		}
	}

	dst = append(dst, StructureStart, NameMarker, byte(size))
	dst = append(dst, nameReserved...)
	dst = append(dst, realName...)
	dst = append(dst, nameSeparator)
	dst = append(dst, displayName...)
	dst = append(dst, nameTrailer...)
	return dst, nil
}

// AppendAutoTranslate appends an auto-translate reference, including its
// terminator, to dst. The id is written in the fewest big-endian bytes.
func AppendAutoTranslate(dst []byte, category uint8, id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	idBytes := buf[:]
	for len(idBytes) > 1 && idBytes[0] == 0 {
		idBytes = idBytes[1:]
	}

	dst = append(dst, StructureStart, AutoTranslateMarker, byte(1+len(idBytes)), category)
	dst = append(dst, idBytes...)
	return append(dst, StructureEnd)
}

// EncodeRecord lays out a raw record:
// [Timestamp(4, LE)][EntryType(1)][0(3)][0x1F][sender][0x3A][message]
func EncodeRecord(timestamp uint32, entryType uint8, sender, message []byte) []byte {
	buf := make([]byte, SenderOffset, SenderOffset+len(sender)+1+len(message))
	binary.LittleEndian.PutUint32(buf[0:4], timestamp)
	buf[entryTypeOffset] = entryType
	buf[HeaderSize] = recordSeparator
	buf = append(buf, sender...)
	buf = append(buf, FieldDelimiter)
	return append(buf, message...)
}

// recordSeparator is written at offset 8. Decoding never checks it.
const recordSeparator byte = 0x1F
