package store

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wordRegex matches letter/digit runs in any script.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// diacriticFold decomposes characters and strips combining marks, so that
// "Réacteur" and "Reacteur" index to the same tokens.
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases a term and folds diacritics. It is applied to both
// indexed names and query terms so the two sides always agree.
func Normalize(s string) string {
	folded, _, err := transform.String(diacriticFold, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// SplitWords returns the normalized word tokens of a name.
func SplitWords(s string) []string {
	return wordRegex.FindAllString(Normalize(s), -1)
}

// TokenizerConfig bounds token derivation.
type TokenizerConfig struct {
	// MinTokenLength drops tokens shorter than this (in runes).
	MinTokenLength int
	// MaxPrefixLength bounds emitted name prefixes (in runes).
	MaxPrefixLength int
}

// DefaultTokenizerConfig matches the config package defaults.
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{MinTokenLength: 2, MaxPrefixLength: 16}
}

// DeriveTokens computes the token set for one record: word tokens of every
// name, each full normalized name, its prefixes up to the bounded length,
// and the decimal ID. The result is sorted and duplicate-free, so token
// derivation is deterministic.
func DeriveTokens(id int64, names []string, cfg TokenizerConfig) []string {
	set := make(map[string]struct{})

	for _, name := range names {
		full := Normalize(name)
		if full == "" {
			continue
		}

		for _, w := range wordRegex.FindAllString(full, -1) {
			if runeLen(w) >= cfg.MinTokenLength {
				set[w] = struct{}{}
			}
		}

		set[full] = struct{}{}
		for _, p := range prefixes(full, cfg.MinTokenLength, cfg.MaxPrefixLength) {
			set[p] = struct{}{}
		}
	}

	set[strconv.FormatInt(id, 10)] = struct{}{}

	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// prefixes emits the rune prefixes of s with lengths in [minLen, maxLen].
func prefixes(s string, minLen, maxLen int) []string {
	runes := []rune(s)
	if len(runes) <= minLen {
		return nil
	}
	var out []string
	for n := minLen; n < len(runes) && n <= maxLen; n++ {
		out = append(out, string(runes[:n]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
