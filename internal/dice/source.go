package dice

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a uniformly distributed int in [0, n), or an error when
	// the underlying entropy cannot be read.
	//
	// Precondition: n > 0.
	Intn(n int) (int, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(n int) (int, error)

// Intn calls f(n).
func (f SourceFunc) Intn(n int) (int, error) { return f(n) }

// ErrSourceExhausted is returned by a sequence source with no values left.
var ErrSourceExhausted = errors.New("dice: sequence source exhausted")

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("dice: Intn called with n = %d", n)
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("dice: crypto/rand: %w", err)
	}
	return int(val.Int64()), nil
}

// seededSource is a reproducible PCG-backed Source.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source: two sources built from the
// same seed produce the same sequence.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("dice: Intn called with n = %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n), nil
}

// sequenceSource replays a fixed list of die faces.
type sequenceSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewSequenceSource returns a Source that yields the given face values in
// order: a face f answers Intn(n) with f-1. It fails with ErrSourceExhausted
// when the faces run out, and with an error when a face does not fit the die
// being rolled.
func NewSequenceSource(faces ...int) Source {
	fs := make([]int, len(faces))
	copy(fs, faces)
	return &sequenceSource{faces: fs}
}

func (s *sequenceSource) Intn(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.faces) {
		return 0, ErrSourceExhausted
	}
	f := s.faces[s.next]
	s.next++
	if f < 1 || f > n {
		return 0, fmt.Errorf("dice: sequence face %d does not fit a d%d", f, n)
	}
	return f - 1, nil
}
