package algorithm

import (
	"math/rand"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Shuffler is the randomness source used for roster shuffles.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// maxDerangeAttempts bounds rejection sampling. A random permutation is a
// derangement about 37% of the time, so this is only reached by a broken
// source.
const maxDerangeAttempts = 64

// Derange returns a copy of the roster where no ticket keeps its original
// position, with queue numbers assigned 1..N in the new order. A single
// ticket cannot move and is returned as-is.
func Derange(s Shuffler, roster []models.Ticket) []models.Ticket {
	n := len(roster)
	perm := make([]int, n)
	for attempt := 0; ; attempt++ {
		for i := range perm {
			perm[i] = i
		}
		s.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		if n < 2 || isDerangement(perm) {
			break
		}
		if attempt == maxDerangeAttempts {
			perm = cycleOf(perm)
			break
		}
	}

	out := make([]models.Ticket, n)
	for pos, from := range perm {
		t := roster[from]
		t.QueueNumber = pos + 1
		out[pos] = t
	}
	return out
}

// cycleOf turns any ordering into a single n-cycle, which has no fixed points.
func cycleOf(order []int) []int {
	n := len(order)
	perm := make([]int, n)
	for i, from := range order {
		perm[from] = order[(i+1)%n]
	}
	return perm
}

func isDerangement(perm []int) bool {
	for i, v := range perm {
		if i == v {
			return false
		}
	}
	return true
}

// NewShuffler returns a seeded math/rand source.
func NewShuffler(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
