// Package alphabet implements site-specific alphabetic ordering: each site
// declares an ordered alphabet (possibly multi-character units), character
// variants that sort as their base character, ignorable characters, and a
// confusable-cleanup map. Custom order strings computed here drive sorting,
// starts-with filtering, and unknown-character detection.
package alphabet

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Alphabet holds one site's orthography configuration.
type Alphabet struct {
	BaseCharacters      []string
	VariantMap          map[string]string // variant -> base character
	IgnorableCharacters []string
	ConfusableMap       map[string]string // input sequence -> canonical form
}

// New returns an Alphabet with no characters defined. Every character of any
// title is then out-of-vocabulary, which matches a site that has not yet set
// up its alphabet.
func New() *Alphabet {
	return &Alphabet{
		VariantMap:    map[string]string{},
		ConfusableMap: map[string]string{},
	}
}

func (a *Alphabet) sorter() *Sorter {
	return NewSorter(a.BaseCharacters, a.IgnorableCharacters)
}

// CleanConfusables rewrites confusable input sequences to their canonical
// characters, longest sequence first.
func (a *Alphabet) CleanConfusables(text string) string {
	if len(a.ConfusableMap) == 0 {
		return text
	}
	keys := make([]string, 0, len(a.ConfusableMap))
	for k := range a.ConfusableMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	var b strings.Builder
	for len(text) > 0 {
		replaced := false
		for _, k := range keys {
			if k != "" && strings.HasPrefix(text, k) {
				b.WriteString(a.ConfusableMap[k])
				text = text[len(k):]
				replaced = true
				break
			}
		}
		if !replaced {
			r := []rune(text)[0]
			b.WriteRune(r)
			text = text[len(string(r)):]
		}
	}
	return b.String()
}

// BaseForm replaces variant characters with their base characters, using
// longest-unit-first matching over bases, variants, and ignorables.
func (a *Alphabet) BaseForm(text string) string {
	units := make([]string, 0, len(a.BaseCharacters)+len(a.VariantMap)+len(a.IgnorableCharacters))
	units = append(units, a.BaseCharacters...)
	for v := range a.VariantMap {
		units = append(units, v)
	}
	units = append(units, a.IgnorableCharacters...)
	sort.SliceStable(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })

	var b strings.Builder
	for len(text) > 0 {
		matched := ""
		for _, u := range units {
			if u != "" && strings.HasPrefix(text, u) {
				matched = u
				break
			}
		}
		if matched == "" {
			r := []rune(text)[0]
			b.WriteRune(r)
			text = text[len(string(r)):]
			continue
		}
		if base, ok := a.VariantMap[matched]; ok {
			b.WriteString(base)
		} else {
			b.WriteString(matched)
		}
		text = text[len(matched):]
	}
	return b.String()
}

// CustomOrder converts text into its custom-order string under this alphabet.
// The conversion is insensitive to character variants and skips ignorable
// characters; characters with no position in the alphabet are rendered with
// the UnknownCharacterFlag sentinel.
func (a *Alphabet) CustomOrder(text string) string {
	return a.sorter().SortString(a.BaseForm(NFC(text)))
}

// ContainsUnknown reports whether text has any character outside the declared
// alphabet. Derived from the custom order string, never stored.
func (a *Alphabet) ContainsUnknown(text string) bool {
	return strings.Contains(a.CustomOrder(text), UnknownCharacterFlag)
}

// NFC normalizes text to NFC form, the canonical form used for all indexed
// and queried text.
func NFC(s string) string {
	return norm.NFC.String(norm.NFD.String(s))
}
