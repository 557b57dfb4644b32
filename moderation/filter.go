// Package moderation masks banned words in message content before it
// is persisted or fanned out.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter matches banned words with an Aho-Corasick automaton built
// once at startup. Matching runs on a normalized view of the text
// (lowercased, separators stripped) so "b.a.d" still matches "bad",
// while masking rewrites the original runes in place.
type Filter struct {
	matcher  *goahocorasick.Machine
	maskRune rune
}

// textMapping links each normalized rune back to its position in the
// original text.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

func NewFilter(bannedWords []string, maskRune rune) (*Filter, error) {
	patterns := make([][]rune, 0, len(bannedWords))
	for _, word := range bannedWords {
		mapping := normalize(word)
		if len(mapping.normalized) == 0 {
			continue
		}
		patterns = append(patterns, mapping.normalized)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: machine, maskRune: maskRune}, nil
}

// Mask replaces every banned-word occurrence with the mask rune,
// preserving length and spacing of the original text.
func (f *Filter) Mask(text string) string {
	mapping := normalize(text)
	if len(mapping.normalized) == 0 {
		return text
	}

	spans := f.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return text
	}

	origRunes := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = f.maskRune
		}
	}
	return string(origRunes)
}

func normalize(text string) textMapping {
	origRunes := []rune(text)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(r))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}
