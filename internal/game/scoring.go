package game

import (
	"math"
	"sort"

	"quizhive/internal/domain"
)

// MatchPolicy decides whether a chosen index set earns credit on a
// multiple-choice question. The default is strict exact-set matching; partial
// credit can be plugged in here without touching the state machine.
type MatchPolicy func(correct, chosen []int) bool

// ExactMatch grants credit only when the chosen set equals the correct set.
func ExactMatch(correct, chosen []int) bool {
	if len(correct) != len(chosen) {
		return false
	}
	c := append([]int(nil), correct...)
	ch := append([]int(nil), chosen...)
	sort.Ints(c)
	sort.Ints(ch)
	for i := range c {
		if c[i] != ch[i] {
			return false
		}
	}
	return true
}

// Score computes the points for one submission. chosen == nil means no
// submission (always zero points). elapsedFraction is submission time divided
// by the question time limit; it is clamped to [0,1]. baseDefault is used when
// the question declares no point value. Points are never negative.
func Score(q domain.Question, chosen []int, elapsedFraction float64, baseDefault int, policy MatchPolicy) (correct bool, points int) {
	if chosen == nil {
		return false, 0
	}
	if policy == nil {
		policy = ExactMatch
	}

	switch q.Kind {
	case domain.SingleChoice:
		correct = len(chosen) == 1 && chosen[0] == q.Correct[0]
	case domain.MultipleChoice:
		correct = policy(q.Correct, chosen)
	default:
		return false, 0
	}
	if !correct {
		return false, 0
	}

	base := q.Points
	if base <= 0 {
		base = baseDefault
	}

	switch q.Mode {
	case domain.ScoringFlat:
		points = base
	case domain.ScoringNone:
		points = 0
	case domain.ScoringStandard, "":
		f := elapsedFraction
		if f < 0 {
			f = 0
		} else if f > 1 {
			f = 1
		}
		points = int(math.Floor(float64(base) * (1 - 0.5*f)))
	default:
		points = 0
	}
	if points < 0 {
		points = 0
	}
	return correct, points
}
