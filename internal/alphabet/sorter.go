package alphabet

import (
	"sort"
	"strings"
)

// UnknownCharacterFlag is prepended to the sort symbol of any character that
// has no position in the site alphabet. Its presence in a computed custom
// order string marks an entry as containing characters outside the declared
// orthography.
const UnknownCharacterFlag = "⚑"

// oovStart is the value offset used for out-of-vocabulary characters, keeping
// them sorted after every in-alphabet character.
const oovStart = 10000

// Sorter converts text into a custom-order string that sorts lexicographically
// the same way the site's declared alphabet does. Alphabet units can be
// multi-rune strings ("ch", "aa"); matching is longest-unit-first.
type Sorter struct {
	units     []string // alphabet units, longest first, for splitting
	ignorable map[string]struct{}
	charToOrd map[string]int
	sortChars []string
}

// NewSorter builds a Sorter for the given alphabet order. A leading space is
// inserted so whitespace sorts before every alphabet character. Ignorable
// characters are dropped from sort strings entirely.
func NewSorter(order []string, ignorable []string) *Sorter {
	full := make([]string, 0, len(order)+1)
	full = append(full, " ")
	full = append(full, order...)

	s := &Sorter{
		ignorable: make(map[string]struct{}, len(ignorable)),
		charToOrd: make(map[string]int, len(full)),
	}
	for _, ig := range ignorable {
		s.ignorable[ig] = struct{}{}
	}
	for i, c := range full {
		if _, dup := s.charToOrd[c]; !dup {
			s.charToOrd[c] = i
		}
	}

	s.units = append(s.units, full...)
	for _, ig := range ignorable {
		s.units = append(s.units, ig)
	}
	sort.SliceStable(s.units, func(i, j int) bool {
		return len(s.units[i]) > len(s.units[j])
	})

	s.sortChars = buildSortSymbols(len(full))
	return s
}

// buildSortSymbols maps ordinal positions to single printable characters:
// the basic Latin plane minus the double quote, extended with the Latin
// Extended-A/B planes for very large alphabets.
func buildSortSymbols(n int) []string {
	var symbols []string
	for i := 32; i < 127 && len(symbols) < n; i++ {
		if i == '"' {
			continue
		}
		symbols = append(symbols, string(rune(i)))
	}
	for i := 256; i < 592 && len(symbols) < n; i++ {
		symbols = append(symbols, string(rune(i)))
	}
	return symbols
}

// split breaks a word into alphabet units using longest-prefix matching.
// Runes that match no unit are returned individually.
func (s *Sorter) split(word string) []string {
	var parts []string
	for len(word) > 0 {
		matched := ""
		for _, u := range s.units {
			if u != "" && strings.HasPrefix(word, u) {
				matched = u
				break
			}
		}
		if matched == "" {
			r := []rune(word)[0]
			matched = string(r)
		}
		parts = append(parts, matched)
		word = word[len(matched):]
	}
	return parts
}

// Values converts a word into its numeric sort form. Out-of-vocabulary runes
// get oovStart plus their code point.
func (s *Sorter) Values(word string) []int {
	var values []int
	for _, part := range s.split(word) {
		if _, ok := s.ignorable[part]; ok {
			continue
		}
		if ord, ok := s.charToOrd[part]; ok {
			values = append(values, ord)
			continue
		}
		for _, r := range part {
			if _, ok := s.ignorable[string(r)]; ok {
				continue
			}
			values = append(values, oovStart+int(r))
		}
	}
	return values
}

// SortString converts a word into a string that unicode-sorts identically to
// its numeric sort form. Unknown characters are rendered as the flag sentinel
// followed by the character itself.
func (s *Sorter) SortString(word string) string {
	var b strings.Builder
	for _, v := range s.Values(word) {
		if v >= oovStart {
			b.WriteString(UnknownCharacterFlag)
			b.WriteRune(rune(v - oovStart))
			continue
		}
		if v < len(s.sortChars) {
			b.WriteString(s.sortChars[v])
		}
	}
	return b.String()
}
