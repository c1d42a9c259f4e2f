package codec

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Kind identifies which variant a Segment holds.
type Kind uint8

const (
	KindPlainText Kind = iota + 1
	KindName
	KindAutoTranslate
)

var kindNames = map[Kind]string{
	KindPlainText:     "text",
	KindName:          "name",
	KindAutoTranslate: "auto_translate",
}

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown segment kind %d", uint8(k))
	}
	return []byte(name), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown segment kind %q", text)
}

// Segment is one typed unit of a message body. Kind selects which of the
// remaining fields are meaningful:
//   - KindPlainText: Text
//   - KindName: RealName, DisplayName
//   - KindAutoTranslate: Category, ID
type Segment struct {
	Kind        Kind   `json:"kind"`
	Text        string `json:"text,omitempty"`
	RealName    string `json:"real_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Category    uint8  `json:"category,omitempty"`
	ID          uint64 `json:"id,omitempty"`
}

// PlainText builds a literal text segment.
func PlainText(text string) Segment {
	return Segment{Kind: KindPlainText, Text: text}
}

// Name builds a name reference segment.
func Name(realName, displayName string) Segment {
	return Segment{Kind: KindName, RealName: realName, DisplayName: displayName}
}

// AutoTranslate builds an auto-translate reference segment.
func AutoTranslate(category uint8, id uint64) Segment {
	return Segment{Kind: KindAutoTranslate, Category: category, ID: id}
}

// DisplayText renders the segment the way a log viewer shows it.
func (s Segment) DisplayText() string {
	switch s.Kind {
	case KindPlainText:
		return s.Text
	case KindName:
		return s.DisplayName
	case KindAutoTranslate:
		return fmt.Sprintf("<AT: %d, %d>", s.Category, s.ID)
	default:
		return ""
	}
}

func (s Segment) String() string {
	switch s.Kind {
	case KindPlainText:
		return fmt.Sprintf("PlainText(%q)", s.Text)
	case KindName:
		return fmt.Sprintf("Name{real_name:%q, display_name:%q}", s.RealName, s.DisplayName)
	case KindAutoTranslate:
		return fmt.Sprintf("AutoTranslate{category:%d, id:%d}", s.Category, s.ID)
	default:
		return s.Kind.String()
	}
}

// lossyString decodes b as UTF-8. Each invalid byte, or truncated multi-byte
// sequence, becomes one U+FFFD.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string([]rune(string(b)))
	}
	return string(out)
}
