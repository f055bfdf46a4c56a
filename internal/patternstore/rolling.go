package patternstore

// RollingMetrics is the fixed-size window of recent outcomes backing the
// lifecycle FSM's promotion/demotion gates. Outcomes holds the most recent
// entries, oldest first, capped at WindowSize.
type RollingMetrics struct {
	WindowSize          int       `json:"window_size"`
	Outcomes            []Outcome `json:"outcomes"`
	SuccessCount        int       `json:"success_count"`
	FailureCount        int       `json:"failure_count"`
	AbstainCount        int       `json:"abstain_count"`
	InjectionCount      int       `json:"injection_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// NewRollingMetrics returns an empty window of the given size.
func NewRollingMetrics(windowSize int) RollingMetrics {
	return RollingMetrics{WindowSize: windowSize, Outcomes: []Outcome{}}
}

// Record appends an outcome, evicting the oldest entry once WindowSize is
// exceeded, and recomputes the derived counters.
func (m RollingMetrics) Record(o Outcome) RollingMetrics {
	outcomes := append(append([]Outcome{}, m.Outcomes...), o)
	if len(outcomes) > m.WindowSize && m.WindowSize > 0 {
		outcomes = outcomes[len(outcomes)-m.WindowSize:]
	}

	next := RollingMetrics{WindowSize: m.WindowSize, Outcomes: outcomes}
	next.InjectionCount = m.InjectionCount + 1

	consecutiveFailures := 0

	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i] != OutcomeFailure {
			break
		}

		consecutiveFailures++
	}

	next.ConsecutiveFailures = consecutiveFailures

	for _, entry := range outcomes {
		switch entry {
		case OutcomeSuccess:
			next.SuccessCount++
		case OutcomeFailure:
			next.FailureCount++
		case OutcomeAbstain:
			next.AbstainCount++
		}
	}

	return next
}

// SuccessRate returns the fraction of non-abstain outcomes in the window
// that were successes. Returns 0 when the window holds no decisive outcome.
func (m RollingMetrics) SuccessRate() float64 {
	decisive := m.SuccessCount + m.FailureCount
	if decisive == 0 {
		return 0
	}

	return float64(m.SuccessCount) / float64(decisive)
}
