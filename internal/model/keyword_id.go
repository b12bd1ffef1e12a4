package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// KeywordIDPrefix prefixes every generated keyword identifier.
const KeywordIDPrefix = "kw-"

// NewKeywordIdentifier generates an identifier like "kw-3fa9c01d2b":
// the prefix plus 10 hex characters of randomness.
func NewKeywordIdentifier() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is
		// no sensible recovery for identifier generation.
		panic(err)
	}
	return KeywordIDPrefix + hex.EncodeToString(buf)
}

// IsKeywordIdentifier reports whether s has the generated identifier shape.
func IsKeywordIdentifier(s string) bool {
	if !strings.HasPrefix(s, KeywordIDPrefix) {
		return false
	}
	rest := strings.TrimPrefix(s, KeywordIDPrefix)
	if len(rest) != 10 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
