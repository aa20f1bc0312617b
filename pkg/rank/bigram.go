package rank

import "strings"

// isWordByte reports whether b belongs to an ASCII alphanumeric run.
func isWordByte(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// isCJK reports whether r is hiragana, katakana, or a CJK unified
// ideograph. These scripts carry no whitespace word boundaries, so
// they are indexed as character bigrams instead of words.
func isCJK(r rune) bool {
	return (r >= 0x3040 && r <= 0x30FF) || (r >= 0x4E00 && r <= 0x9FFF)
}

// Tokenize splits text into search tokens. ASCII alphanumeric runs
// become lowercased word tokens; CJK characters become overlapping
// character bigrams, which match common substrings without
// morphological analysis ("打ち合わせ" shares no token with "打合せ"
// at word level but overlaps at bigram level).
func Tokenize(text string) []string {
	var tokens []string

	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	var cjk []rune
	for _, r := range text {
		if isWordByte(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		if isCJK(r) {
			cjk = append(cjk, r)
		}
	}
	flush()

	for i := 0; i+1 < len(cjk); i++ {
		tokens = append(tokens, string(cjk[i])+string(cjk[i+1]))
	}

	return tokens
}
