// Package index derives search tokens from decoded chat entries and lays out
// the posting keys the archive stores them under.
//
// A posting key is the token followed by the entry id:
//
//	idx/<token>/<ksuid bytes>
//
// Tokens contain only letters and digits, so the separator never appears
// inside one and every posting for a token shares the prefix idx/<token>/.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/chatlog/pkg/codec"
)

const (
	// PostingPrefix starts every posting key.
	PostingPrefix = "idx/"

	// MaxTokenLength caps the length in bytes of an indexed token.
	MaxTokenLength = 64

	separator byte = '/'
)

// ErrInvalidKey is returned when a key is not a posting key.
var ErrInvalidKey = errors.New("index: invalid posting key")

var defaultNormalizer = NewNormalizer()

// Tokens returns the unique normalized tokens of an entry, in first-seen
// order. Sources are the message display text and both names of the sender.
func Tokens(entry codec.Entry) []string {
	return defaultNormalizer.Tokens(entry)
}

// Tokens returns the unique normalized tokens of an entry. See Tokens.
func (n *Normalizer) Tokens(entry codec.Entry) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(text string) {
		for _, tok := range n.Split(text) {
			tok = truncate(tok, MaxTokenLength)
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}

	if entry.Sender != nil {
		add(entry.Sender.DisplayText())
		if entry.Sender.Kind == codec.KindName {
			add(entry.Sender.RealName)
		}
	}
	add(entry.Message.DisplayText())

	return out
}

// Terms normalizes a search query into the tokens to look up.
func Terms(query string) []string {
	toks := defaultNormalizer.Split(query)
	out := toks[:0]
	seen := make(map[string]struct{}, len(toks))
	for _, tok := range toks {
		tok = truncate(tok, MaxTokenLength)
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// TermPrefix returns the key prefix shared by every posting of token.
func TermPrefix(token string) []byte {
	key := make([]byte, 0, len(PostingPrefix)+len(token)+1)
	key = append(key, PostingPrefix...)
	key = append(key, token...)
	return append(key, separator)
}

// PostingKey builds the key recording that entry id contains token.
func PostingKey(token string, id ksuid.KSUID) []byte {
	return append(TermPrefix(token), id.Bytes()...)
}

// ParsePostingKey splits a posting key into its token and entry id.
func ParsePostingKey(key []byte) (string, ksuid.KSUID, error) {
	if !bytes.HasPrefix(key, []byte(PostingPrefix)) || len(key) < len(PostingPrefix)+len(ksuid.Nil)+1 {
		return "", ksuid.Nil, ErrInvalidKey
	}
	rest := key[len(PostingPrefix):]
	split := len(rest) - len(ksuid.Nil) - 1
	if rest[split] != separator {
		return "", ksuid.Nil, ErrInvalidKey
	}
	id, err := ksuid.FromBytes(rest[split+1:])
	if err != nil {
		return "", ksuid.Nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return string(rest[:split]), id, nil
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
