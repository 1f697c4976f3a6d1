package dice

import (
	"strings"
)

// Parse parses and validates a dice expression.
//
// Supported forms: "d20", "2d6", "2d6+3", "1d20+1d4-2", "-1+3d8".
// Whitespace between tokens is ignored and the "d" is case-insensitive.
//
// Postcondition: Returns an Expression with at least one die group and Raw
// equal to the trimmed input, or a *ValidationError. The first problem found
// scanning left to right is reported, except NoDiceGroupsFound, which is only
// reported for otherwise well-formed input.
func Parse(text string) (Expression, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Expression{}, &ValidationError{Kind: KindEmptyInput}
	}

	tokens, err := tokenize(raw)
	if err != nil {
		return Expression{}, malformed(raw)
	}

	var (
		groups   []DieGroup
		modifier int
		sign     = "" // pending operator, "" when none has been seen
		expectOp = false
	)

	for _, tok := range tokens {
		if tok.sign {
			if sign != "" {
				return Expression{}, malformed(tok.value)
			}
			sign = tok.value
			expectOp = false
			continue
		}

		if expectOp {
			return Expression{}, malformed(tok.value)
		}

		kind, countStr, sidesStr := classify(tok.value)
		switch kind {
		case termDieGroup:
			if sign == "-" {
				return Expression{}, malformed("-" + tok.value)
			}
			g, err := dieGroup(tok.value, countStr, sidesStr)
			if err != nil {
				return Expression{}, err
			}
			groups = append(groups, g)
		case termInteger:
			n := saturatingAtoi(tok.value)
			if n > MaxModifier {
				return Expression{}, &ValidationError{Kind: KindModifierOutOfRange, Text: tok.value, Value: signed(sign, n)}
			}
			modifier += signed(sign, n)
		default:
			return Expression{}, malformed(tok.value)
		}
		sign = ""
		expectOp = true
	}

	if sign != "" {
		return Expression{}, malformed(sign)
	}
	if modifier > MaxModifier || modifier < -MaxModifier {
		return Expression{}, &ValidationError{Kind: KindModifierOutOfRange, Value: modifier}
	}
	if len(groups) == 0 {
		return Expression{}, &ValidationError{Kind: KindNoDiceGroupsFound}
	}

	return Expression{Raw: raw, Modifier: modifier, groups: groups}, nil
}

// IsExpression reports whether Parse would succeed on text.
func IsExpression(text string) bool {
	_, err := Parse(text)
	return err == nil
}

// MustParse parses expr and panics on error. Useful for package-level values.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

func dieGroup(text, countStr, sidesStr string) (DieGroup, error) {
	count := 1
	if countStr != "" {
		count = saturatingAtoi(countStr)
	}
	if count < 1 || count > MaxCount {
		return DieGroup{}, &ValidationError{Kind: KindCountOutOfRange, Text: text, Value: count}
	}
	sides := saturatingAtoi(sidesStr)
	if sides < MinSides || sides > MaxSides {
		return DieGroup{}, &ValidationError{Kind: KindSidesOutOfRange, Text: text, Value: sides}
	}
	return DieGroup{Count: count, Sides: sides}, nil
}

// saturationLimit bounds the numbers carried in errors. It is far above
// every notation limit, so saturated values are still out of range.
const saturationLimit = 1_000_000_000

// saturatingAtoi converts a string of ASCII digits, returning
// saturationLimit+1 once the value exceeds saturationLimit so arbitrarily
// long digit runs cannot overflow.
func saturatingAtoi(digits string) int {
	n := 0
	for i := 0; i < len(digits); i++ {
		n = n*10 + int(digits[i]-'0')
		if n > saturationLimit {
			return saturationLimit + 1
		}
	}
	return n
}

func signed(sign string, n int) int {
	if sign == "-" {
		return -n
	}
	return n
}
