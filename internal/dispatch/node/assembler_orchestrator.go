package node

import (
	"context"

	"github.com/onex-learning/patternd/internal/dispatch"
)

// ExecutionEvent is the assembler orchestrator's input: one observed
// execution carrying a candidate's feature vector and the signature lookup
// needed to find or create its pattern row.
type ExecutionEvent struct {
	CandidateFeatures map[string]float64 `json:"candidate_features"`
	KnownFeatures     map[string]float64 `json:"known_features"`
	StoreInput        StoreInput         `json:"store_input"`
	GateInput         GateInput          `json:"gate_input"`
}

// PatternAssemblerOrchestrator sequences matching -> storage -> a lifecycle
// gate check for one incoming execution event. It never touches EffectDeps
// directly - only delegates.Match (pure) and delegates.Store/delegates.Gate
// (effects resolved by the caller) are invoked, which is what keeps an
// orchestrator's own code free of I/O imports for the purity audit.
var PatternAssemblerOrchestrator OrchestratorFunc[ExecutionEvent] = func(ctx context.Context, in ExecutionEvent, delegates Delegates) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	match := delegates.Match(MatchInput{
		CandidateFeatures: in.CandidateFeatures,
		KnownFeatures:     in.KnownFeatures,
	})

	storeInput := in.StoreInput
	storeInput.IsNewVersion = match.IsMatch

	deps := EffectDeps{Store: delegates.PatternDB, Env: delegates.Env, DomainResolver: delegates.DomainResolver}

	result, storeOutbound, err := delegates.Store(ctx, storeInput, deps)
	if err != nil || result != dispatch.Applied {
		return result, storeOutbound, err
	}

	result, gateOutbound, err := delegates.Gate(ctx, in.GateInput, deps)

	return result, append(storeOutbound, gateOutbound...), err
}
