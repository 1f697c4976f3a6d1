// Package dice implements the dice-notation engine: tokenizing, parsing and
// validating expressions such as "2d6+3", evaluating them under a roll type,
// and locating expressions embedded in free text.
//
// The engine is stateless. Randomness comes only from an injected Source.
package dice

import (
	"errors"
	"fmt"
	"strings"
)

// Notation limits.
const (
	MinSides    = 2
	MaxSides    = 1000
	MaxCount    = 100
	MaxModifier = 9999
)

// DieGroup is N dice of S sides, e.g. 3d8.
//
// Invariant: 1 <= Count <= MaxCount; MinSides <= Sides <= MaxSides.
type DieGroup struct {
	Count int
	Sides int
}

// String renders the group in canonical "<count>d<sides>" notation.
func (g DieGroup) String() string {
	return fmt.Sprintf("%dd%d", g.Count, g.Sides)
}

// Expression is a parsed, validated dice expression.
//
// Invariant: len(groups) >= 1 after a successful Parse. Raw is the trimmed
// input exactly as typed.
type Expression struct {
	Raw      string
	Modifier int
	groups   []DieGroup
}

// NewExpression builds an Expression from already-validated parts.
//
// Precondition: groups is non-empty and every group is within limits.
func NewExpression(raw string, groups []DieGroup, modifier int) Expression {
	gs := make([]DieGroup, len(groups))
	copy(gs, groups)
	return Expression{Raw: raw, Modifier: modifier, groups: gs}
}

// Groups returns a copy of the die groups in left-to-right order.
func (e Expression) Groups() []DieGroup {
	gs := make([]DieGroup, len(e.groups))
	copy(gs, e.groups)
	return gs
}

// DiceCount returns the total number of dice across all groups.
func (e Expression) DiceCount() int {
	n := 0
	for _, g := range e.groups {
		n += g.Count
	}
	return n
}

// LeadsWithD20 reports whether the first die group rolls twenty-sided dice.
// Front ends use it to decide advantage eligibility; the evaluator ignores it.
func (e Expression) LeadsWithD20() bool {
	return len(e.groups) > 0 && e.groups[0].Sides == 20
}

// Canonical re-serializes the expression as "<groups>[+-]<modifier>", e.g.
// "1d20+1d4-2". It is used for display next to Raw, never in place of it.
func (e Expression) Canonical() string {
	var b strings.Builder
	for i, g := range e.groups {
		if i > 0 {
			b.WriteByte('+')
		}
		b.WriteString(g.String())
	}
	if e.Modifier != 0 {
		fmt.Fprintf(&b, "%+d", e.Modifier)
	}
	return b.String()
}

// String returns the raw expression text.
func (e Expression) String() string {
	return e.Raw
}

// RollType selects how the evaluator rolls an expression.
type RollType int

const (
	Normal RollType = iota
	Advantage
	Disadvantage
	Critical
)

func (t RollType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Advantage:
		return "advantage"
	case Disadvantage:
		return "disadvantage"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("RollType(%d)", int(t))
	}
}

// ParseRollType converts a roll type name or short alias to a RollType.
// The empty string is Normal.
func ParseRollType(s string) (RollType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return Normal, nil
	case "advantage", "adv":
		return Advantage, nil
	case "disadvantage", "dis":
		return Disadvantage, nil
	case "critical", "crit":
		return Critical, nil
	default:
		return Normal, fmt.Errorf("dice: unknown roll type %q", s)
	}
}

// ErrAdvantageIneligible is returned by CheckAdvantage when advantage or
// disadvantage is requested for an expression that leads with a d20.
var ErrAdvantageIneligible = errors.New("dice: advantage and disadvantage do not apply to d20 rolls")

// CheckAdvantage enforces the front-end eligibility rule: Advantage and
// Disadvantage are refused when expr leads with a d20. Other roll types always
// pass. Evaluate itself never applies this rule.
func CheckAdvantage(expr Expression, rollType RollType) error {
	if (rollType == Advantage || rollType == Disadvantage) && expr.LeadsWithD20() {
		return ErrAdvantageIneligible
	}
	return nil
}
