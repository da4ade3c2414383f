package model

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/poiesic/relevance/core"
)

// Tokenize lowercases text, splits it on anything that is not a letter or a
// digit and keeps at most maxTokens tokens.
func Tokenize(text string, maxTokens int) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isTokenRune(r)
	})
	if maxTokens > 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// TruncateText returns the prefix of text that ends with its maxTokens-th
// token, using the same token boundaries as Tokenize. Text with at most
// maxTokens tokens is returned unchanged.
func TruncateText(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	count, cut := 0, -1
	inToken := false
	for i, r := range text {
		if isTokenRune(r) {
			if cut >= 0 {
				return text[:cut]
			}
			inToken = true
			continue
		}
		if inToken {
			inToken = false
			count++
			if count == maxTokens {
				cut = i
			}
		}
	}
	return text
}

// bucket maps a feature string to one of dims hash buckets.
func bucket(feature string, dims int) int {
	return int(uint64(core.IDFromContent(feature)) % uint64(dims))
}

// hashFeatures builds an L2-normalized sparse count vector over hashed
// features, with indices in ascending order.
func hashFeatures(features []string, dims int) Encoding {
	if len(features) == 0 {
		return Encoding{Indices: []int{}, Values: []float64{}}
	}

	counts := make(map[int]float64, len(features))
	for _, f := range features {
		counts[bucket(f, dims)]++
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	var norm float64
	for _, idx := range indices {
		norm += counts[idx] * counts[idx]
	}
	norm = math.Sqrt(norm)

	values := make([]float64, len(indices))
	for k, idx := range indices {
		values[k] = counts[idx] / norm
	}
	return Encoding{Indices: indices, Values: values}
}

// bigrams returns "a b" pairs of adjacent tokens.
func bigrams(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 1; i < len(tokens); i++ {
		out = append(out, tokens[i-1]+" "+tokens[i])
	}
	return out
}
