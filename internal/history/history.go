// Package history keeps a capped, most-recent-first list of completed rolls
// per owner. The dice engine knows nothing about it; front ends append to it
// after each roll.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rollbox/internal/dice"
)

// ErrInvalidOwner is returned when an owner key is empty.
var ErrInvalidOwner = errors.New("history: owner must not be empty")

// Line is one breakdown entry flattened for storage and display.
type Line struct {
	Label    string `json:"label"`
	Values   []int  `json:"values"`
	Subtotal int    `json:"subtotal"`
}

// Entry is a stored roll.
type Entry struct {
	ID         uuid.UUID
	Owner      string
	Expression string
	RollType   string
	Breakdown  []Line
	Modifier   int
	Total      int
	RolledAt   time.Time
}

// NewEntry flattens a roll result into an Entry for owner with a fresh ID.
func NewEntry(owner string, r dice.RollResult) Entry {
	lines := make([]Line, len(r.Breakdown))
	for i, e := range r.Breakdown {
		lines[i] = Line{Label: e.Label(), Values: e.Values(), Subtotal: e.Subtotal()}
	}
	return Entry{
		ID:         uuid.New(),
		Owner:      owner,
		Expression: r.Expression.Raw,
		RollType:   r.Type.String(),
		Breakdown:  lines,
		Modifier:   r.Modifier,
		Total:      r.Total,
		RolledAt:   r.Timestamp,
	}
}

// Store persists roll history.
type Store interface {
	// Add records e as the newest entry for e.Owner, dropping the oldest
	// entries beyond the store's capacity.
	Add(ctx context.Context, e Entry) error
	// List returns up to limit entries for owner, newest first. A limit
	// <= 0 returns every retained entry.
	List(ctx context.Context, owner string, limit int) ([]Entry, error)
	// Clear removes every entry for owner.
	Clear(ctx context.Context, owner string) error
}

// MemoryStore is an in-process Store.
//
// Invariant: each owner's list holds at most capacity entries, newest first.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]Entry
}

// NewMemoryStore returns an empty MemoryStore keeping capacity entries per owner.
//
// Precondition: capacity >= 1.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{capacity: capacity, entries: make(map[string][]Entry)}
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	if e.Owner == "" {
		return ErrInvalidOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[e.Owner]
	n := min(len(list)+1, s.capacity)
	next := make([]Entry, n)
	next[0] = e
	copy(next[1:], list)
	s.entries[e.Owner] = next
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, owner string, limit int) ([]Entry, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[owner]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	out := make([]Entry, len(list))
	copy(out, list)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, owner)
	return nil
}
