package index

import "strings"

// isIdeograph reports whether r is a CJK ideograph (URO or Extension A).
func isIdeograph(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

// Tokenize splits mixed Chinese/English text into index terms.
//
// Ideographic runs produce every single character plus every
// adjacent-character bigram; bigrams are filtered against the stop-word
// set independently of their component characters. Other runs are
// lowercased and split into maximal alphanumeric words, keeping words
// longer than one character that are not stop-words.
//
// The output order is deterministic for a given input. Empty input
// yields no tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	runes := []rune(text)

	for i := 0; i < len(runes); {
		j := i
		ideo := isIdeograph(runes[i])
		for j < len(runes) && isIdeograph(runes[j]) == ideo {
			j++
		}
		seg := runes[i:j]
		if ideo {
			tokens = appendIdeographTokens(tokens, seg)
		} else {
			tokens = appendWordTokens(tokens, seg)
		}
		i = j
	}

	return tokens
}

// appendIdeographTokens emits unigrams then bigrams for an ideographic run.
func appendIdeographTokens(tokens []string, seg []rune) []string {
	for _, r := range seg {
		ch := string(r)
		if !IsStopWord(ch) {
			tokens = append(tokens, ch)
		}
	}
	for i := 0; i+1 < len(seg); i++ {
		bigram := string(seg[i : i+2])
		if !IsStopWord(bigram) {
			tokens = append(tokens, bigram)
		}
	}
	return tokens
}

// appendWordTokens emits lowercase alphanumeric words from a non-ideographic run.
func appendWordTokens(tokens []string, seg []rune) []string {
	lower := strings.ToLower(string(seg))
	var word strings.Builder
	flush := func() {
		if w := word.String(); len(w) > 1 && !IsStopWord(w) {
			tokens = append(tokens, w)
		}
		word.Reset()
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// TokenSet tokenizes text and returns the unique-term set.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
