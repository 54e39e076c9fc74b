// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TruncationMarker is appended to text cut down by TruncateToTokenLimit.
const TruncationMarker = "\n...[truncated]"

// TokenCounter counts and trims text by tokens. Local model families have
// their own vocabularies; cl100k is used as a uniform approximation.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // codec construction loads the vocabulary once
var (
	sharedOnce    sync.Once
	sharedCounter *TokenCounter
)

// NewTokenCounter creates a token counter using the cl100k encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// SharedTokenCounter returns a process-wide counter. If the codec cannot be
// built the returned counter estimates by characters.
func SharedTokenCounter() *TokenCounter {
	sharedOnce.Do(func() {
		counter, err := NewTokenCounter()
		if err != nil {
			counter = &TokenCounter{}
		}
		sharedCounter = counter
	})
	return sharedCounter
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return estimate(text)
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return count
}

// CountTokensSimple counts tokens with the shared counter.
func CountTokensSimple(text string) int {
	return SharedTokenCounter().CountTokens(text)
}

// ValidateTokenLimit reports whether text fits within limit tokens.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}

// TruncateToTokenLimit cuts text to at most limit tokens and appends
// TruncationMarker when anything was removed.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if tc.CountTokens(text) <= limit {
		return text
	}

	if tc != nil && tc.codec != nil {
		ids, _, err := tc.codec.Encode(text)
		if err == nil && len(ids) > limit {
			if decoded, decErr := tc.codec.Decode(ids[:limit]); decErr == nil {
				return strings.ToValidUTF8(decoded, "") + TruncationMarker
			}
		}
	}

	// Character fallback, kept on a rune boundary.
	cut := limit * 4
	if cut >= len(text) {
		return text
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker
}

// estimate approximates 4 characters per token.
func estimate(text string) int {
	return (len(text) + 3) / 4
}
