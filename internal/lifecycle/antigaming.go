package lifecycle

import "github.com/onex-learning/patternd/internal/patternstore"

// AlertType names the class of anti-gaming signal, grounded in the
// guardrail checks the original pattern-compliance pipeline runs before
// letting a pattern auto-promote.
type AlertType string

const (
	AlertGoodhartViolation   AlertType = "goodhart_violation"
	AlertRewardHacking       AlertType = "reward_hacking"
	AlertDistributionalShift AlertType = "distributional_shift"
	AlertDiversityConstraint AlertType = "diversity_constraint_violation"
)

// Severity mirrors the mismatch detector's severity scale (spec.md §4.7):
// INFO is informational, WARN surfaces for operator review, BLOCKER halts
// auto-promotion and may trigger automatic blacklisting.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarn    Severity = "WARN"
	SeverityBlocker Severity = "BLOCKER"
)

// Alert is the outcome of an anti-gaming check against a pattern's current
// evidence. Active is false when no guardrail tripped; Type/Severity are
// meaningful only when Active is true.
type Alert struct {
	Active   bool
	Type     AlertType
	Severity Severity
	Reason   string
}

// CheckAntiGaming runs the guardrail checks consulted by the promotion
// effect before a PROVISIONAL -> VALIDATED transition. It is a pure
// Compute-kind function: no I/O, just evaluation of the metrics already
// computed for this pattern.
//
//   - Goodhart violation: success_rate is saturated (>= 0.99) while the
//     window is still short of CMin injections, so the window hasn't earned
//     the confidence its rate implies.
//   - Diversity constraint: fewer distinct domain candidates than the
//     minimum required to call the evidence representative.
//
// No check here produces AlertRewardHacking or AlertDistributionalShift.
func CheckAntiGaming(metrics patternstore.RollingMetrics, domains []patternstore.DomainCandidate, thresholds Thresholds) Alert {
	const minDistinctDomains = 1

	if metrics.InjectionCount < thresholds.CMin && metrics.SuccessRate() >= 0.99 {
		return Alert{
			Active:   true,
			Type:     AlertGoodhartViolation,
			Severity: SeverityWarn,
			Reason:   "success_rate saturated before injection_count reached C_min",
		}
	}

	if len(distinctDomains(domains)) < minDistinctDomains {
		return Alert{
			Active:   true,
			Type:     AlertDiversityConstraint,
			Severity: SeverityBlocker,
			Reason:   "no domain candidates recorded for this pattern",
		}
	}

	return Alert{}
}

func distinctDomains(domains []patternstore.DomainCandidate) map[string]struct{} {
	seen := make(map[string]struct{}, len(domains))

	for _, d := range domains {
		seen[d.Domain] = struct{}{}
	}

	return seen
}
