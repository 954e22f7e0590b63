package alphabet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlphabet() *Alphabet {
	return &Alphabet{
		BaseCharacters:      []string{"a", "ch", "c", "h", "x̱"},
		VariantMap:          map[string]string{"A": "a", "Ch": "ch", "C": "c", "H": "h"},
		IgnorableCharacters: []string{"-"},
		ConfusableMap:       map[string]string{"x_": "x̱"},
	}
}

func TestCleanConfusables(t *testing.T) {
	a := testAlphabet()
	assert.Equal(t, "x̱a", a.CleanConfusables("x_a"))
	assert.Equal(t, "plain", a.CleanConfusables("plain"))
}

func TestBaseFormVariants(t *testing.T) {
	a := testAlphabet()
	// Multi-character variants resolve before their single-character prefixes.
	assert.Equal(t, "cha", a.BaseForm("Cha"))
	assert.Equal(t, "ca", a.BaseForm("Ca"))
	assert.Equal(t, "a-ch", a.BaseForm("A-Ch"))
}

func TestCustomOrderVariantInsensitive(t *testing.T) {
	a := testAlphabet()
	assert.Equal(t, a.CustomOrder("cha"), a.CustomOrder("ChA"))
	assert.Equal(t, a.CustomOrder("ach"), a.CustomOrder("a-ch"))
}

func TestContainsUnknown(t *testing.T) {
	a := &Alphabet{
		BaseCharacters: []string{"f", "a", "s"},
		VariantMap:     map[string]string{},
		ConfusableMap:  map[string]string{},
	}
	assert.False(t, a.ContainsUnknown("fas"))
	assert.True(t, a.ContainsUnknown("faqs"))
}

func TestEmptyAlphabetEverythingUnknown(t *testing.T) {
	a := New()
	require.True(t, a.ContainsUnknown("bb"))
	assert.Contains(t, a.CustomOrder("bb"), UnknownCharacterFlag)
}

func TestNFCNormalization(t *testing.T) {
	// U+0065 U+0301 (decomposed) and U+00E9 (precomposed) are the same
	// character after normalization.
	assert.Equal(t, NFC("é"), NFC("é"))
}
