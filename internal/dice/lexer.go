package dice

import (
	"fmt"
	"regexp"

	"github.com/alecthomas/participle/v2/lexer"
)

// notationLexer splits an expression into whitespace, sign and term tokens.
// Whitespace is the unicode.IsSpace set, matching strings.TrimSpace. Term
// swallows every run that is not whitespace or a sign, so lexing never fails;
// terms are classified afterwards.
var notationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s\v\x{85}\p{Z}]+`},
	{Name: "Sign", Pattern: `[+-]`},
	{Name: "Term", Pattern: `[^\s\v\x{85}\p{Z}+\-]+`},
})

var (
	tokSign = notationLexer.Symbols()["Sign"]
	tokTerm = notationLexer.Symbols()["Term"]
)

var (
	dieGroupPattern = regexp.MustCompile(`^(\d*)[dD](\d+)$`)
	integerPattern  = regexp.MustCompile(`^\d+$`)
)

type termKind int

const (
	termMalformed termKind = iota
	termDieGroup
	termInteger
)

// token is a sign or term with its byte offset in the trimmed input.
type token struct {
	sign   bool
	value  string
	offset int
}

// tokenize lexes s into sign and term tokens, dropping whitespace.
func tokenize(s string) ([]token, error) {
	lex, err := notationLexer.LexString("", s)
	if err != nil {
		return nil, fmt.Errorf("dice: lexing %q: %w", s, err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("dice: lexing %q: %w", s, err)
	}
	tokens := make([]token, 0, len(raw))
	for _, t := range raw {
		switch t.Type {
		case tokSign:
			tokens = append(tokens, token{sign: true, value: t.Value, offset: t.Pos.Offset})
		case tokTerm:
			tokens = append(tokens, token{value: t.Value, offset: t.Pos.Offset})
		}
	}
	return tokens, nil
}

// classify reports what kind of group a term is. For die groups it returns
// the count and sides digit strings; count is "" when omitted.
func classify(term string) (kind termKind, count, sides string) {
	if m := dieGroupPattern.FindStringSubmatch(term); m != nil {
		return termDieGroup, m[1], m[2]
	}
	if integerPattern.MatchString(term) {
		return termInteger, "", ""
	}
	return termMalformed, "", ""
}
