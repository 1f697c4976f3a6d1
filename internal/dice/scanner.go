package dice

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// candidatePattern matches a die group with an optional trailing modifier,
// anchored at the scan position. Spaces and tabs may surround the sign, but a
// match never crosses a line break. Submatch 1 is the bare group.
var candidatePattern = regexp.MustCompile(`^(\d*[dD]\d+)(?:[ \t]*[+-][ \t]*\d+)?`)

// Span locates a dice expression inside a larger text by byte offsets.
//
// Invariant: Text == source[Start:End].
type Span struct {
	Start int
	End   int
	Text  string
}

// Scan returns every dice expression embedded in text, left to right.
// Matches are located only; pass each through Parse before rolling it.
func Scan(text string) []string {
	spans := ScanSpans(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

// ScanSpans finds non-overlapping dice expressions in text.
//
// A match must start at the beginning of text or after a rune that is not a
// letter or digit, and must end at the end of text or before such a rune.
// The longest candidate at the leftmost position wins: a group with its
// modifier is preferred, falling back to the bare group when the modifier
// runs into a word. Scanning resumes after the end of each match.
func ScanSpans(text string) []Span {
	var spans []Span
	prev := rune(-1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(prev) {
			if end, ok := matchAt(text, i); ok {
				spans = append(spans, Span{Start: i, End: end, Text: text[i:end]})
				prev, _ = utf8.DecodeLastRuneInString(text[:end])
				i = end
				continue
			}
		}
		prev = r
		i += size
	}
	return spans
}

// matchAt tries the candidate pattern at offset i and returns the end of the
// accepted match.
func matchAt(text string, i int) (int, bool) {
	loc := candidatePattern.FindStringSubmatchIndex(text[i:])
	if loc == nil {
		return 0, false
	}
	for _, end := range []int{loc[1], loc[3]} {
		if boundaryAfter(text, i+end) {
			return i + end, true
		}
	}
	return 0, false
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r >= 0 && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
