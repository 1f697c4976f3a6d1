package dice

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ValidationError.
type ErrorKind int

const (
	KindEmptyInput ErrorKind = iota + 1
	KindMalformedGroup
	KindSidesOutOfRange
	KindCountOutOfRange
	KindModifierOutOfRange
	KindNoDiceGroupsFound
)

// Sentinel errors, one per ErrorKind. A *ValidationError unwraps to the
// sentinel for its kind so callers can use errors.Is.
var (
	ErrEmptyInput         = errors.New("dice: empty expression")
	ErrMalformedGroup     = errors.New("dice: malformed group")
	ErrSidesOutOfRange    = errors.New("dice: sides out of range")
	ErrCountOutOfRange    = errors.New("dice: count out of range")
	ErrModifierOutOfRange = errors.New("dice: modifier out of range")
	ErrNoDiceGroupsFound  = errors.New("dice: no dice groups found")
)

// ErrRngFailure is returned by the evaluator when its Source fails. It is the
// only evaluation-time error; the evaluator never retries.
var ErrRngFailure = errors.New("dice: randomness source failure")

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyInput:
		return "EmptyInput"
	case KindMalformedGroup:
		return "MalformedGroup"
	case KindSidesOutOfRange:
		return "SidesOutOfRange"
	case KindCountOutOfRange:
		return "CountOutOfRange"
	case KindModifierOutOfRange:
		return "ModifierOutOfRange"
	case KindNoDiceGroupsFound:
		return "NoDiceGroupsFound"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindEmptyInput:
		return ErrEmptyInput
	case KindMalformedGroup:
		return ErrMalformedGroup
	case KindSidesOutOfRange:
		return ErrSidesOutOfRange
	case KindCountOutOfRange:
		return ErrCountOutOfRange
	case KindModifierOutOfRange:
		return ErrModifierOutOfRange
	case KindNoDiceGroupsFound:
		return ErrNoDiceGroupsFound
	default:
		return nil
	}
}

// ValidationError describes why a string is not a valid dice expression.
//
// Text is the offending fragment (empty for EmptyInput and NoDiceGroupsFound).
// Value is the offending number for the *OutOfRange kinds.
type ValidationError struct {
	Kind  ErrorKind
	Text  string
	Value int
}

// Error returns a message suitable for showing to a player.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindEmptyInput:
		return "dice: expression is empty"
	case KindMalformedGroup:
		return fmt.Sprintf("dice: malformed group %q", e.Text)
	case KindSidesOutOfRange:
		return fmt.Sprintf("dice: %q has %d sides, must be %d-%d", e.Text, e.Value, MinSides, MaxSides)
	case KindCountOutOfRange:
		return fmt.Sprintf("dice: %q rolls %d dice, must be 1-%d", e.Text, e.Value, MaxCount)
	case KindModifierOutOfRange:
		return fmt.Sprintf("dice: modifier %d is out of range, must be within ±%d", e.Value, MaxModifier)
	case KindNoDiceGroupsFound:
		return "dice: expression has no dice groups"
	default:
		return "dice: invalid expression"
	}
}

// Unwrap returns the sentinel error for e.Kind.
func (e *ValidationError) Unwrap() error {
	return e.Kind.sentinel()
}

func malformed(text string) error {
	return &ValidationError{Kind: KindMalformedGroup, Text: text}
}
