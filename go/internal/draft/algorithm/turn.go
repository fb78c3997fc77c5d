// Package algorithm holds the pure draft rules: snake turn order, pick
// validation, auto-pick selection and completion.
package algorithm

import (
	"sort"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// ActiveIndex returns the roster index whose turn it is. Odd rounds go
// ascending, even rounds descending. n must be positive and pick 1-based.
func ActiveIndex(n, round, pick int) int {
	pos := (pick - 1) % n
	if round%2 == 0 {
		return n - 1 - pos
	}
	return pos
}

// SortByQueue returns a copy of the roster ordered by queue number.
func SortByQueue(roster []models.Ticket) []models.Ticket {
	out := make([]models.Ticket, len(roster))
	copy(out, roster)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out
}

// CurrentDrafter resolves the ticket on the clock for a roster already sorted by queue number.
func CurrentDrafter(sorted []models.Ticket, round, pick int) (models.Ticket, bool) {
	n := len(sorted)
	if n == 0 || round < 1 || pick < 1 || pick > n {
		return models.Ticket{}, false
	}
	return sorted[ActiveIndex(n, round, pick)], true
}

// Advance moves the counters past one pick. When the pick counter passes
// the roster size the round increments and the pick counter resets.
func Advance(n, round, pick int) (nextRound, nextPick int, roundChanged bool) {
	if pick >= n {
		return round + 1, 1, true
	}
	return round, pick + 1, false
}

// IsComplete reports whether every catalog item has been picked.
func IsComplete(totalPicks, itemCount int) bool {
	return totalPicks >= itemCount
}
