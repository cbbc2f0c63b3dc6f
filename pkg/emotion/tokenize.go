package emotion

import (
	"strings"
	"unicode"
)

// stopwords are particles and fillers too common to carry emotional signal.
var stopwords = map[string]struct{}{
	"이": {}, "그": {}, "저": {}, "것": {}, "수": {}, "등": {}, "때": {},
	"나": {}, "너": {}, "내": {}, "우리": {}, "오늘": {}, "어제": {}, "내일": {},
	"정말": {}, "너무": {}, "진짜": {}, "조금": {}, "많이": {}, "더": {}, "좀": {},
	"그리고": {}, "그래서": {}, "하지만": {}, "그런데": {}, "있다": {}, "없다": {},
	"하다": {}, "했다": {}, "같다": {},
}

// Tokenize splits on whitespace and punctuation, keeping letter/number runs.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// LearnableTokens returns the deduplicated non-stopword tokens of a text that
// are worth storing in the keyword dictionary.
func LearnableTokens(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(text) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// TopTokens returns up to limit learnable tokens, in text order. Used for the
// keyword list on the outbound center payload.
func TopTokens(text string, limit int) []string {
	toks := LearnableTokens(text)
	if len(toks) > limit {
		toks = toks[:limit]
	}
	return toks
}

// expandPrefixes widens each token into all of its rune prefixes so that an
// inflected form still hits its dictionary stem ("우울했다" matches "우울").
func expandPrefixes(tokens []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		runes := []rune(tok)
		for i := 1; i <= len(runes); i++ {
			p := string(runes[:i])
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
