// Package textnorm canonicalizes text and filenames and derives the content
// fingerprint used for deduplication.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalize folds OCR noise out of text: whitespace runs collapse to one
// space, letters are lower-cased and punctuation becomes a space. A connector
// between two letters or digits ("S-19", "3.5", "it's") is dropped instead, so
// "S-19" and "s19" normalize alike. Combining marks count as part of the
// letter they follow. Normalize is idempotent.
func Normalize(text string) string {
	runes := []rune(strings.ToLower(collapse(text)))
	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		switch {
		case isWordOrMark(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case isConnector(r) && between(runes, i):
		default:
			b.WriteByte(' ')
		}
	}
	return collapse(b.String())
}

// CanonicalFilename trims, lower-cases and collapses whitespace. The result is
// the natural key of a document within its scope.
func CanonicalFilename(name string) string {
	return strings.ToLower(collapse(name))
}

// Fingerprint is the lower-case hex SHA-256 of the UTF-8 bytes of an already
// normalized text.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ContentFingerprint normalizes text and fingerprints the result.
func ContentFingerprint(text string) string {
	return Fingerprint(Normalize(text))
}

// Terms splits normalized text into its words.
func Terms(text string) []string {
	return strings.Fields(Normalize(text))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isConnector(r rune) bool {
	switch r {
	case '-', '.', '\'', '’', '_', '‐', '‑':
		return true
	}
	return false
}

func between(runes []rune, i int) bool {
	if i == 0 || i == len(runes)-1 {
		return false
	}
	return isWordOrMark(runes[i-1]) && isWordOrMark(runes[i+1])
}

func isWordOrMark(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
