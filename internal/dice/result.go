package dice

import (
	"fmt"
	"strings"
	"time"
)

// Labels for synthetic breakdown entries.
const (
	LabelAdvantage    = "advantage"
	LabelDisadvantage = "disadvantage"
	LabelCritical     = "critical"
)

// SingleDieRoll is one die's face value.
//
// Invariant: 1 <= Value <= Sides. Extremal is true iff Value is 1 or Sides;
// it is for display emphasis only.
type SingleDieRoll struct {
	Sides    int
	Value    int
	Extremal bool
}

func newDieRoll(sides, value int) SingleDieRoll {
	return SingleDieRoll{Sides: sides, Value: value, Extremal: value == 1 || value == sides}
}

// Entry is one line of a roll breakdown. The concrete type is one of
// GroupEntry, AdvantageEntry, DisadvantageEntry or CriticalEntry; the set is
// closed, so a type switch over those four is exhaustive.
type Entry interface {
	// Label is the group notation ("2d6") or a synthetic label.
	Label() string
	// Rolls returns the individual dice in roll order.
	Rolls() []SingleDieRoll
	// Values returns the face values in roll order.
	Values() []int
	// Subtotal is this entry's contribution to the total.
	Subtotal() int

	entry()
}

// GroupEntry is a declared die group rolled normally.
type GroupEntry struct {
	Group DieGroup
	Dice  []SingleDieRoll
}

func (e GroupEntry) Label() string          { return e.Group.String() }
func (e GroupEntry) Rolls() []SingleDieRoll { return copyRolls(e.Dice) }
func (e GroupEntry) Values() []int          { return faceValues(e.Dice) }
func (e GroupEntry) Subtotal() int          { return sumFaces(e.Dice) }
func (GroupEntry) entry()                   {}

// AdvantageEntry is the synthetic 2d6 appended under Advantage. It
// contributes the higher of the two dice.
type AdvantageEntry struct {
	Dice [2]SingleDieRoll
}

func (e AdvantageEntry) Label() string          { return LabelAdvantage }
func (e AdvantageEntry) Rolls() []SingleDieRoll { return []SingleDieRoll{e.Dice[0], e.Dice[1]} }
func (e AdvantageEntry) Values() []int          { return []int{e.Dice[0].Value, e.Dice[1].Value} }
func (e AdvantageEntry) Subtotal() int          { return max(e.Dice[0].Value, e.Dice[1].Value) }
func (AdvantageEntry) entry()                   {}

// DisadvantageEntry is the synthetic 2d6 appended under Disadvantage. It
// subtracts the lower of the two dice; the face values stay positive.
type DisadvantageEntry struct {
	Dice [2]SingleDieRoll
}

func (e DisadvantageEntry) Label() string          { return LabelDisadvantage }
func (e DisadvantageEntry) Rolls() []SingleDieRoll { return []SingleDieRoll{e.Dice[0], e.Dice[1]} }
func (e DisadvantageEntry) Values() []int          { return []int{e.Dice[0].Value, e.Dice[1].Value} }
func (e DisadvantageEntry) Subtotal() int          { return -min(e.Dice[0].Value, e.Dice[1].Value) }
func (DisadvantageEntry) entry()                   {}

// CriticalEntry is a declared group rolled with doubled dice.
//
// Invariant: len(Dice) == 2*Group.Count. Granted counts the leading dice
// that were set to the maximum face instead of being rolled.
type CriticalEntry struct {
	Group   DieGroup
	Dice    []SingleDieRoll
	Granted int
}

func (e CriticalEntry) Label() string          { return LabelCritical }
func (e CriticalEntry) Rolls() []SingleDieRoll { return copyRolls(e.Dice) }
func (e CriticalEntry) Values() []int          { return faceValues(e.Dice) }
func (e CriticalEntry) Subtotal() int          { return sumFaces(e.Dice) }
func (CriticalEntry) entry()                   {}

// RollResult is the full audit trail of one evaluation.
//
// Postcondition: Total == Modifier + sum of every Breakdown subtotal.
type RollResult struct {
	Expression Expression
	Type       RollType
	Breakdown  []Entry
	Modifier   int
	Total      int
	Timestamp  time.Time
}

// DiceTotal returns the sum of breakdown subtotals, excluding the modifier.
func (r RollResult) DiceTotal() int {
	sum := 0
	for _, e := range r.Breakdown {
		sum += e.Subtotal()
	}
	return sum
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → 2d6[4 5] +3 = 12"
//	"1d8 (advantage) → 1d8[3] advantage[2 6]=6 +0 = 9"
func (r RollResult) String() string {
	var b strings.Builder
	b.WriteString(r.Expression.Raw)
	if r.Type != Normal {
		fmt.Fprintf(&b, " (%s)", r.Type)
	}
	b.WriteString(" →")
	for _, e := range r.Breakdown {
		fmt.Fprintf(&b, " %s%v", e.Label(), e.Values())
		if _, isGroup := e.(GroupEntry); !isGroup {
			fmt.Fprintf(&b, "=%d", e.Subtotal())
		}
	}
	fmt.Fprintf(&b, " %+d = %d", r.Modifier, r.Total)
	return b.String()
}

func copyRolls(rs []SingleDieRoll) []SingleDieRoll {
	out := make([]SingleDieRoll, len(rs))
	copy(out, rs)
	return out
}

func faceValues(rs []SingleDieRoll) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Value
	}
	return out
}

func sumFaces(rs []SingleDieRoll) int {
	sum := 0
	for _, r := range rs {
		sum += r.Value
	}
	return sum
}
