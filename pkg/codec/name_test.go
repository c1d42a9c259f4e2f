package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameLength(t *testing.T) {
	name := mustName(t, nil, "Alice Smith", "Ally")
	// The terminator is the last byte and is not counted.
	assert.Equal(t, len(name)-1, nameLength(name))

	assert.Equal(t, 0, nameLength([]byte{0x02, 0x27, 0x10, 'a', 'b'}))
	assert.Equal(t, 0, nameLength([]byte{0x02, 0x27, 0x10, 0x02, 0x27, 'b'}))
	assert.Equal(t, 0, nameLength([]byte{0x02}))
}

func TestDecodeName(t *testing.T) {
	seg, ok := DecodeName(mustName(t, nil, "Alice Smith", "Ally"))
	require.True(t, ok)
	assert.Equal(t, Name("Alice Smith", "Ally"), seg)
}

func TestDecodeName_MinimumSize(t *testing.T) {
	// 9 + real + separator + display + 9 trailer bytes before the terminator.
	exact := mustName(t, nil, "ab", "c")
	n := nameLength(exact)
	require.Equal(t, MinNameSize, n)

	seg, ok := decodeName(exact[:n])
	require.True(t, ok)
	assert.Equal(t, Name("ab", "c"), seg)

	short := mustName(t, nil, "a", "b")
	n = nameLength(short)
	require.Equal(t, MinNameSize-1, n)
	_, ok = decodeName(short[:n])
	assert.False(t, ok)

	// The scanner trims to the computed length, so the short form stays literal.
	assert.Equal(t, []Segment{PlainText(lossyString(short))}, ScanMessage(short))

	// A sender field is decoded untrimmed and still meets the minimum.
	seg, ok = DecodeName(short)
	require.True(t, ok)
	assert.Equal(t, Name("a", "b"), seg)
}

func TestDecodeName_RealNameOffsets(t *testing.T) {
	name := mustName(t, nil, "", "Display Name")
	require.Equal(t, byte(realNameOffset-nameLengthBias), name[nameLengthOffset])

	seg, ok := DecodeName(name)
	require.True(t, ok)
	assert.Equal(t, Name("", "Display Name"), seg)

	// A length byte that puts the real name end before the real name start.
	name[nameLengthOffset] = realNameOffset - nameLengthBias - 1
	_, ok = DecodeName(name)
	assert.False(t, ok)

	// A length byte pointing past the buffer.
	name[nameLengthOffset] = 0xFF
	_, ok = DecodeName(name)
	assert.False(t, ok)
}

func TestDecodeName_Rejects(t *testing.T) {
	valid := mustName(t, nil, "Alice Smith", "Ally")

	t.Run("wrong marker", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[1] = AutoTranslateMarker
		_, ok := DecodeName(b)
		assert.False(t, ok)
	})

	t.Run("invalid utf-8 real name", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[realNameOffset] = 0xFF
		_, ok := DecodeName(b)
		assert.False(t, ok)
	})

	t.Run("invalid utf-8 display name", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[realNameOffset+len("Alice Smith")+1] = 0xC3
		_, ok := DecodeName(b)
		assert.False(t, ok)
	})

	t.Run("display name empty because start byte follows real name", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[realNameOffset+len("Alice Smith")] = StructureStart
		_, ok := DecodeName(b)
		assert.False(t, ok)
	})

	t.Run("no start byte after real name", func(t *testing.T) {
		b := append([]byte(nil), valid[:realNameOffset+len("Alice Smith")+5]...)
		b = append(b, make([]byte, 20)...)
		_, ok := DecodeName(b)
		assert.False(t, ok)
	})
}

func TestAppendName_Errors(t *testing.T) {
	long := make([]byte, 249)
	for i := range long {
		long[i] = 'a'
	}
	_, err := AppendName(nil, string(long), "x")
	assert.Error(t, err)

	_, err = AppendName(nil, "ok", "bad\x02")
	assert.Error(t, err)

	_, err = AppendName(nil, string(long[:248]), "x")
	assert.NoError(t, err)
}
