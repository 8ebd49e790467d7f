package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Hello,\n\tWorld!  ":   "hello world",
		"Road S-19 closed":       "road s19 closed",
		"road s19  closed.":      "road s19 closed",
		"Wartość: 3.5 mln zł":    "wartość 35 mln zł",
		"(a) -- (b)":             "a b",
		"":                       "",
		"...":                    "",
		"ŁÓDŹ – Kraków/Warszawa": "łódź kraków warszawa",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeConnectorAfterCombiningMark(t *testing.T) {
	decomposed := Normalize("e\u0301-x")
	assert.Equal(t, "e\u0301x", decomposed)
	assert.Equal(t, "\u00e9x", Normalize("\u00e9-x"))
	assert.Equal(t, decomposed, Normalize(decomposed))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Road S-19 closed",
		"  Multi\n\nline\ttext -- with ; punctuation!! ",
		"Umowa nr 12/2024 z dnia 01.02.2024",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestFingerprintInsensitiveToNoise(t *testing.T) {
	a := ContentFingerprint("Road S-19 closed")
	b := ContentFingerprint("road s19  closed.")
	c := ContentFingerprint("ROAD\nS 19\tCLOSED")
	require.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, ContentFingerprint("road s20 closed"))
}

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", fp)
	assert.Len(t, ContentFingerprint("anything"), 64)
}

func TestCanonicalFilename(t *testing.T) {
	assert.Equal(t, "annual report 2024.pdf", CanonicalFilename("  Annual   Report\t2024.PDF "))
	assert.Equal(t, CanonicalFilename("a b.pdf"), CanonicalFilename("A  B.pdf"))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"road", "s19", "closed"}, Terms("Road S-19, closed."))
	assert.Empty(t, Terms("  "))
}
