package core

import (
	"fmt"
	"sync"
)

// TurnBudget enforces a maximum number of turns per run. Turn numbers start
// at 1, increase monotonically and never exceed the maximum.
type TurnBudget struct {
	max  int
	turn int
	mu   sync.Mutex
}

// NewTurnBudget creates a new budget allowing max turns. max must be >= 1.
func NewTurnBudget(max int) *TurnBudget {
	return &TurnBudget{max: max}
}

// Next advances to the next turn and returns its number. It returns an error
// once the budget is exhausted.
func (b *TurnBudget) Next() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.turn >= b.max {
		return b.turn, fmt.Errorf("turn budget exhausted: %d", b.max)
	}
	b.turn++

	return b.turn, nil
}

// Turn returns the current turn number (0 before the first turn).
func (b *TurnBudget) Turn() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.turn
}

// Max returns the configured maximum.
func (b *TurnBudget) Max() int { return b.max }

// Remaining returns how many turns are left after the current one.
func (b *TurnBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.max - b.turn
}

// Exhausted reports whether no further turn may start.
func (b *TurnBudget) Exhausted() bool {
	return b.Remaining() <= 0
}
