package lifecycle

import (
	"time"

	"github.com/onex-learning/patternd/internal/config"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// Thresholds holds the promotion/demotion gate constants. Defaults match
// spec.md §4.5 exactly; every field is overridable via environment so
// operators never have to recompile to tune the gates.
type Thresholds struct {
	// CMin is the minimum injection_count required for PROVISIONAL -> VALIDATED.
	CMin int
	// RMin is the minimum success_rate required for PROVISIONAL -> VALIDATED.
	RMin float64
	// FMax is the maximum consecutive_failures tolerated for PROVISIONAL -> VALIDATED.
	FMax int
	// RDemote is the success_rate floor below which VALIDATED -> DEPRECATED fires.
	RDemote float64
	// FMaxDemote is the consecutive_failures ceiling above which VALIDATED -> DEPRECATED fires.
	FMaxDemote int
}

const (
	defaultCMin       = 5
	defaultRMin       = 0.60
	defaultFMax       = 3
	defaultRDemote    = 0.40
	defaultFMaxDemote = 5
)

// LoadThresholds reads the gate thresholds from environment, falling back
// to spec.md's defaults.
func LoadThresholds() Thresholds {
	return Thresholds{
		CMin:       config.GetEnvInt("PROMOTION_C_MIN", defaultCMin),
		RMin:       config.GetEnvFloat64("PROMOTION_R_MIN", defaultRMin),
		FMax:       config.GetEnvInt("PROMOTION_F_MAX", defaultFMax),
		RDemote:    config.GetEnvFloat64("DEMOTION_R_DEMOTE", defaultRDemote),
		FMaxDemote: config.GetEnvInt("DEMOTION_F_MAX", defaultFMaxDemote),
	}
}

// GateSnapshot is an alias of the store's own snapshot type: it is what
// ApplyTransition persists verbatim as the audit gate_snapshot, so the gate
// functions build exactly that value rather than a parallel one.
type GateSnapshot = patternstore.GateSnapshot

// snapshot captures tier and metrics at decision time.
func snapshot(tier EvidenceTier, metrics patternstore.RollingMetrics, now time.Time) GateSnapshot {
	return GateSnapshot{
		EvidenceTier:   tier,
		RollingMetrics: metrics,
		SuccessRate:    metrics.SuccessRate(),
		EvaluatedAt:    now,
	}
}

// CandidateToProvisionalGate evaluates spec.md §4.5's CANDIDATE ->
// PROVISIONAL guard: evidence_tier >= OBSERVED and at least one recorded
// success in the rolling window. Pure function of its inputs; no I/O.
func CandidateToProvisionalGate(
	tier EvidenceTier,
	metrics patternstore.RollingMetrics,
	now time.Time,
) (bool, GateSnapshot) {
	snap := snapshot(tier, metrics, now)

	ok := tier.AtLeast(patternstore.TierObserved) && metrics.SuccessCount > 0

	return ok, snap
}

// ProvisionalToValidatedGate evaluates spec.md §4.5's PROVISIONAL ->
// VALIDATED guard: evidence_tier >= MEASURED, injection_count >= CMin,
// success_rate >= RMin, consecutive_failures <= FMax, and no active
// anti-gaming alert.
func ProvisionalToValidatedGate(
	tier EvidenceTier,
	metrics patternstore.RollingMetrics,
	thresholds Thresholds,
	alert Alert,
	now time.Time,
) (bool, GateSnapshot) {
	snap := snapshot(tier, metrics, now)

	ok := tier.AtLeast(patternstore.TierMeasured) &&
		metrics.InjectionCount >= thresholds.CMin &&
		metrics.SuccessRate() >= thresholds.RMin &&
		metrics.ConsecutiveFailures <= thresholds.FMax &&
		!alert.Active

	return ok, snap
}

// ValidatedToDeprecatedGate evaluates spec.md §4.5's VALIDATED ->
// DEPRECATED auto-demotion guard, evaluated over a fresh window:
// success_rate < RDemote OR consecutive_failures > FMaxDemote.
func ValidatedToDeprecatedGate(
	tier EvidenceTier,
	metrics patternstore.RollingMetrics,
	thresholds Thresholds,
	now time.Time,
) (bool, GateSnapshot) {
	snap := snapshot(tier, metrics, now)

	ok := metrics.SuccessRate() < thresholds.RDemote || metrics.ConsecutiveFailures > thresholds.FMaxDemote

	return ok, snap
}
