package index

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer folds chat text into a canonical form for indexing.
// Steps, in order:
//  1. drop invalid UTF-8
//  2. NFKC
//  3. case fold
//  4. drop combining marks and format runes
//  5. fold fullwidth forms
//  6. collapse whitespace and trim
//
// It is safe for concurrent use.
type Normalizer struct {
	pool sync.Pool
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		pool: sync.Pool{
			New: func() any {
				return transform.Chain(
					norm.NFKC,
					cases.Fold(),
					runes.Remove(runes.In(unicode.Mn)),
					runes.Remove(runes.In(unicode.Cf)),
					width.Fold,
				)
			},
		},
	}
}

// Normalize returns the canonical form of s.
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := n.pool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	n.pool.Put(tr)
	if err != nil {
		out = s
	}

	return strings.Join(strings.Fields(out), " ")
}

// Split normalizes s and breaks it into words. Anything that is not a letter
// or a digit separates words.
func (n *Normalizer) Split(s string) []string {
	return strings.FieldsFunc(n.Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
