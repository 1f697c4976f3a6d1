package dice

import (
	"fmt"
	"strings"
	"time"
)

// CritPolicy selects how Critical doubles a group's dice.
type CritPolicy int

const (
	// CritDoubleDice rolls 2×count dice for every group.
	CritDoubleDice CritPolicy = iota
	// CritMaxPlusRoll grants count dice at their maximum face without
	// sampling and rolls the other count dice.
	CritMaxPlusRoll
)

func (p CritPolicy) String() string {
	switch p {
	case CritDoubleDice:
		return "double"
	case CritMaxPlusRoll:
		return "max_plus_roll"
	default:
		return fmt.Sprintf("CritPolicy(%d)", int(p))
	}
}

// ParseCritPolicy converts a config value to a CritPolicy. The empty string
// is CritDoubleDice.
func ParseCritPolicy(s string) (CritPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "double":
		return CritDoubleDice, nil
	case "max_plus_roll":
		return CritMaxPlusRoll, nil
	default:
		return CritDoubleDice, fmt.Errorf("dice: unknown crit policy %q", s)
	}
}

// Evaluator rolls parsed expressions.
//
// An Evaluator holds no per-roll state; it is safe for concurrent use when
// its Source is.
type Evaluator struct {
	src  Source
	crit CritPolicy
	now  func() time.Time
}

// NewEvaluator returns an Evaluator drawing from src.
//
// Precondition: src must be non-nil.
func NewEvaluator(src Source, crit CritPolicy) *Evaluator {
	return &Evaluator{src: src, crit: crit, now: time.Now}
}

// WithClock returns a copy of e that stamps results using now.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	c := *e
	c.now = now
	return &c
}

// CritPolicy returns the evaluator's critical policy.
func (e *Evaluator) CritPolicy() CritPolicy {
	return e.crit
}

// Evaluate rolls expr under rollType using src with the default critical
// policy.
//
// Precondition: expr must come from Parse; src must be non-nil.
func Evaluate(expr Expression, rollType RollType, src Source) (RollResult, error) {
	return NewEvaluator(src, CritDoubleDice).Evaluate(expr, rollType)
}

// Evaluate rolls expr under rollType.
//
// Declared groups are rolled in order. Advantage and Disadvantage append one
// synthetic 2d6 entry after them; Critical replaces each group's entry with a
// doubled one. The modifier is never doubled.
//
// Precondition: expr must come from Parse.
// Postcondition: result.Total == result.Modifier + sum of entry subtotals,
// or the error wraps ErrRngFailure.
func (e *Evaluator) Evaluate(expr Expression, rollType RollType) (RollResult, error) {
	entries := make([]Entry, 0, len(expr.groups)+1)

	for _, g := range expr.groups {
		if rollType == Critical {
			ce, err := e.rollCritical(g)
			if err != nil {
				return RollResult{}, err
			}
			entries = append(entries, ce)
			continue
		}
		dice, err := e.rollDice(g.Sides, g.Count)
		if err != nil {
			return RollResult{}, err
		}
		entries = append(entries, GroupEntry{Group: g, Dice: dice})
	}

	switch rollType {
	case Advantage, Disadvantage:
		pair, err := e.rollDice(6, 2)
		if err != nil {
			return RollResult{}, err
		}
		if rollType == Advantage {
			entries = append(entries, AdvantageEntry{Dice: [2]SingleDieRoll{pair[0], pair[1]}})
		} else {
			entries = append(entries, DisadvantageEntry{Dice: [2]SingleDieRoll{pair[0], pair[1]}})
		}
	case Normal, Critical:
	default:
		return RollResult{}, fmt.Errorf("dice: unsupported roll type %v", rollType)
	}

	total := expr.Modifier
	for _, en := range entries {
		total += en.Subtotal()
	}

	return RollResult{
		Expression: expr,
		Type:       rollType,
		Breakdown:  entries,
		Modifier:   expr.Modifier,
		Total:      total,
		Timestamp:  e.now(),
	}, nil
}

func (e *Evaluator) rollCritical(g DieGroup) (CriticalEntry, error) {
	granted := 0
	dice := make([]SingleDieRoll, 0, 2*g.Count)
	if e.crit == CritMaxPlusRoll {
		granted = g.Count
		for i := 0; i < g.Count; i++ {
			dice = append(dice, newDieRoll(g.Sides, g.Sides))
		}
	}
	rolled, err := e.rollDice(g.Sides, 2*g.Count-granted)
	if err != nil {
		return CriticalEntry{}, err
	}
	dice = append(dice, rolled...)
	return CriticalEntry{Group: g, Dice: dice, Granted: granted}, nil
}

// rollDice samples n dice of the given sides.
func (e *Evaluator) rollDice(sides, n int) ([]SingleDieRoll, error) {
	out := make([]SingleDieRoll, n)
	for i := range out {
		v, err := e.src.Intn(sides)
		if err != nil {
			return nil, fmt.Errorf("%w: rolling d%d: %w", ErrRngFailure, sides, err)
		}
		if v < 0 || v >= sides {
			return nil, fmt.Errorf("%w: source returned %d for d%d", ErrRngFailure, v, sides)
		}
		out[i] = newDieRoll(sides, v+1)
	}
	return out, nil
}
