package node

import (
	"context"

	"github.com/onex-learning/patternd/internal/aliasing"
	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// StoreInput carries either a brand-new signature (UpsertPattern) or a diff
// against an existing signature lineage (StartNewVersion). For a brand-new
// signature, SignatureHash is recomputed from NewSignature before it reaches
// the store - a producer's own claimed hash is never trusted, since only a
// hash derived from the canonical text can guarantee two differently-spelled
// reports of the same pattern converge on one lineage. For a version bump,
// SignatureHash identifies the existing lineage being extended and is taken
// as given. IdempotencyKey guards the version-bump path the same way every
// lifecycle transition is guarded: a redelivered pattern-store.apply command
// for a signature already matched to an existing lineage must not insert a
// second version row.
type StoreInput struct {
	NewSignature   string                     `json:"new_signature,omitempty"`
	SignatureHash  string                     `json:"signature_hash,omitempty"`
	Fields         patternstore.PatternFields `json:"fields,omitempty"`
	Diff           patternstore.PatternDiff   `json:"diff,omitempty"`
	IsNewVersion   bool                       `json:"is_new_version"`
	IdempotencyKey string                     `json:"idempotency_key,omitempty"`
}

// patternStored is the wire payload of evt.pattern-stored.v1.
type patternStored struct {
	PatternID     string `json:"pattern_id"`
	SignatureHash string `json:"signature_hash"`
	NewVersion    bool   `json:"new_version"`
}

// PatternStorageEffect wraps PatternStore.UpsertPattern/StartNewVersion
// behind the EffectFunc contract, so the dispatch engine's transaction
// lifecycle stays the only place that commits or rolls back storage
// mutations. Either path publishes evt.pattern-stored.v1 so downstream
// projections never need to poll the store for a row they just caused.
var PatternStorageEffect EffectFunc[StoreInput] = func(ctx context.Context, in StoreInput, deps EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	if in.IsNewVersion {
		in.Diff.DomainCandidates = resolveDomains(deps.DomainResolver, in.Diff.DomainCandidates)

		patternID, err := deps.Store.StartNewVersion(ctx, in.SignatureHash, in.Diff, in.IdempotencyKey)
		if err != nil {
			return dispatch.RetryableFailure, nil, err
		}

		return dispatch.Applied, storedOutbound(deps.Env, patternID, in.SignatureHash, true), nil
	}

	in.Fields.DomainCandidates = resolveDomains(deps.DomainResolver, in.Fields.DomainCandidates)
	in.SignatureHash = patternstore.ComputeSignatureHash(in.NewSignature)

	patternID, err := deps.Store.UpsertPattern(ctx, in.NewSignature, in.SignatureHash, in.Fields)
	if err != nil {
		return dispatch.RetryableFailure, nil, err
	}

	return dispatch.Applied, storedOutbound(deps.Env, patternID, in.SignatureHash, false), nil
}

// resolveDomains canonicalizes each candidate's domain name so that the same
// underlying domain reported under different spellings by different agent
// integrations accumulates under one DomainCandidate entry instead of
// fragmenting the pattern's domain_candidates array.
func resolveDomains(resolver *aliasing.Resolver, candidates []patternstore.DomainCandidate) []patternstore.DomainCandidate {
	if resolver == nil || len(candidates) == 0 {
		return candidates
	}

	resolved := make([]patternstore.DomainCandidate, len(candidates))

	for i, c := range candidates {
		c.Domain = resolver.Resolve(c.Domain)
		resolved[i] = c
	}

	return resolved
}

func storedOutbound(env, patternID, signatureHash string, newVersion bool) []dispatch.Outbound {
	topic := envelope.NewTopic(env, envelope.Event, "pattern-store", "stored", 1)

	return []dispatch.Outbound{{
		Topic:         topic,
		EventType:     "pattern-stored",
		SchemaVersion: 1,
		Payload:       patternStored{PatternID: patternID, SignatureHash: signatureHash, NewVersion: newVersion},
		PartitionKey:  topic.PartitionKey(signatureHash, patternID),
	}}
}
