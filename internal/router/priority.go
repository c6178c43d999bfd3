package router

import "github.com/dshills/floorplan/internal/verdict"

// Scoring thresholds.
const (
	AutoApproveConfidence = 0.95
	LowConfidence         = 0.7
	MediumConfidence      = 0.85
	LargeBudget           = 1_000_000.0
)

// ComputeScore calculates the urgency score of a submission. Lower generation
// confidence, more findings, more rooms and a large budget all raise it.
func ComputeScore(s Submission) int {
	score := 0
	switch {
	case s.GenerationConfidence < LowConfidence:
		score += 2
	case s.GenerationConfidence < MediumConfidence:
		score++
	}
	score += 2*len(s.Result.Errors) + len(s.Result.Warnings)
	switch {
	case s.RoomCount > 10:
		score += 2
	case s.RoomCount > 5:
		score++
	}
	if s.Budget > LargeBudget {
		score++
	}
	return score
}

// PriorityFor maps a score to a priority.
func PriorityFor(score int) Priority {
	switch {
	case score >= 5:
		return PriorityCritical
	case score >= 3:
		return PriorityHigh
	case score >= 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// autoApprovable reports whether s needs no human reviewer. Fallback layouts
// always go to a human.
func autoApprovable(s Submission) bool {
	return !s.IsFallback &&
		s.GenerationConfidence >= AutoApproveConfidence &&
		len(s.Result.Errors) == 0 &&
		s.Result.Status.Valid() && s.Result.Status != verdict.StatusRejected
}
