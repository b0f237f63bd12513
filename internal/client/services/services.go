// Package services holds the client-side application logic for cards, tags
// and links. Every mutation is written to the local replica first and then
// handed to the sync engine, so the app behaves identically online and
// offline.
package services

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
	"unicode"
)

const shareIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// newShareID builds a fresh public share identifier from the base62
// alphabet.
func newShareID(length int) (string, error) {
	max := big.NewInt(int64(len(shareIDAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = shareIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

// countWords counts CJK characters individually and everything else as
// whitespace-separated words, so a note mixing scripts is measured
// consistently with how its author perceives its length.
func countWords(content string) int {
	count := 0
	inWord := false
	for _, r := range content {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}

// normalizeTagName is the canonical form used for tag dedup.
func normalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var tagPalette = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#ec4899",
}

// randomTagColor picks a palette color for a new tag.
func randomTagColor() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tagPalette))))
	if err != nil {
		return tagPalette[0]
	}
	return tagPalette[n.Int64()]
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
