package feedback

import (
	"github.com/onex-learning/patternd/internal/patternstore"
)

// Heuristic names a contribution-splitting strategy. Each heuristic reports
// a fixed Confidence - a measure of how much the resulting attribution
// weights should be trusted relative to a heuristic that actually observes
// causal structure - and a Split function that always sums to 1.0 within
// floating-point tolerance.
type Heuristic interface {
	Name() patternstore.Heuristic
	Confidence() float64
	Split(injections []patternstore.PatternInjection) []float64
}

// EqualSplit divides credit evenly across every injection in the session,
// the maximally-uninformative prior.
type EqualSplit struct{}

func (EqualSplit) Name() patternstore.Heuristic { return patternstore.HeuristicEqualSplit }
func (EqualSplit) Confidence() float64          { return 0.5 }

func (EqualSplit) Split(injections []patternstore.PatternInjection) []float64 {
	return splitEvenly(len(injections))
}

// RecencyWeighted biases credit toward injections that occurred closer to
// the session's terminal outcome, on the assumption that the most recently
// surfaced pattern is more likely to be the one the agent actually acted on.
type RecencyWeighted struct{}

func (RecencyWeighted) Name() patternstore.Heuristic { return patternstore.HeuristicRecencyWeighted }
func (RecencyWeighted) Confidence() float64          { return 0.7 }

func (RecencyWeighted) Split(injections []patternstore.PatternInjection) []float64 {
	n := len(injections)
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)

	var total float64

	for i := range injections {
		w := float64(i + 1)
		weights[i] = w
		total += w
	}

	for i := range weights {
		weights[i] /= total
	}

	return weights
}

// FirstMatch assigns all credit to the first injection of the session, on
// the assumption that the earliest surfaced pattern set the agent's
// trajectory and later injections were incidental.
type FirstMatch struct{}

func (FirstMatch) Name() patternstore.Heuristic { return patternstore.HeuristicFirstMatch }
func (FirstMatch) Confidence() float64          { return 0.6 }

func (FirstMatch) Split(injections []patternstore.PatternInjection) []float64 {
	n := len(injections)
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)
	weights[0] = 1.0

	return weights
}

func splitEvenly(n int) []float64 {
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)

	share := 1.0 / float64(n)
	for i := range weights {
		weights[i] = share
	}

	return weights
}
