// Package node defines the tagged-union node-kind contracts the dispatch
// engine's handlers are built from: Compute (pure), Effect (I/O), Reducer
// (pure, stateful fold), and Orchestrator (sequences other nodes). A node is
// a Go function value satisfying one of these four signatures, never a
// class hierarchy - the kind is encoded in the type, not in an inheritance
// chain.
package node

import (
	"context"
	"database/sql"

	"github.com/onex-learning/patternd/internal/aliasing"
	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// Kind identifies which of the four node archetypes a function belongs to.
// Kind is informational (used by the purity audit's diagnostics and by
// registry wiring) - the actual enforcement is the Go type system: a
// ComputeFunc's signature has no way to reach a context.Context or an I/O
// dependency.
type Kind int

const (
	// Compute nodes are pure functions: no I/O, no context, deterministic.
	Compute Kind = iota

	// Effect nodes perform I/O against EffectDeps inside a caller-supplied
	// transaction.
	Effect

	// Reducer nodes fold an input into previous state, synchronously and
	// without I/O.
	Reducer

	// Orchestrator nodes sequence calls into other nodes' Handle methods,
	// never touching EffectDeps directly.
	Orchestrator
)

// String renders the kind for logging and registry diagnostics.
func (k Kind) String() string {
	switch k {
	case Compute:
		return "compute"
	case Effect:
		return "effect"
	case Reducer:
		return "reducer"
	case Orchestrator:
		return "orchestrator"
	default:
		return "unknown"
	}
}

// ComputeFunc is a pure function: no context.Context parameter at all, so it
// cannot block, cannot be cancelled, and cannot reach an I/O dependency
// through its signature.
type ComputeFunc[I any, O any] func(I) O

// EffectDeps bundles the I/O dependencies an EffectFunc may use. It is
// always threaded through an already-open transaction so that an effect's
// mutation and the dispatch engine's idempotency record commit atomically.
// Env is the deployment environment prefix ("prod", "staging", ...) an
// effect needs to construct an outbound envelope.Topic; effects that never
// publish leave it unused. DomainResolver canonicalizes a raw domain
// candidate name before it is persisted; nil is treated as a no-op resolver.
type EffectDeps struct {
	Tx             *sql.Tx
	Store          *patternstore.Store
	Env            string
	DomainResolver *aliasing.Resolver
}

// EffectFunc performs I/O against deps inside an ambient transaction and
// returns the dispatch HandlerResult plus any events it wants published.
type EffectFunc[I any] func(ctx context.Context, in I, deps EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error)

// ReducerFunc folds in into prev, synchronously, with no I/O of its own -
// used for in-process aggregation (e.g. rolling-window updates) ahead of an
// effect node that persists the result.
type ReducerFunc[S any, I any] func(prev S, in I) S

// Delegates is the set of other nodes' entry points an OrchestratorFunc may
// call. An orchestrator must never reach into EffectDeps directly - it only
// sequences calls through Delegates, which is how §4.4's "no deep
// inheritance, only composition of node calls" requirement is enforced at
// the type level.
type Delegates struct {
	Match          ComputeFunc[MatchInput, MatchResult]
	Store          EffectFunc[StoreInput]
	Gate           EffectFunc[GateInput]
	PatternDB      *patternstore.Store
	Env            string
	DomainResolver *aliasing.Resolver
}

// OrchestratorFunc sequences calls into Delegates for one incoming execution
// event and returns the aggregate result plus every Outbound its delegate
// effects produced along the way - an orchestrator must forward these
// unchanged rather than swallow them, since it is the dispatch engine, not
// the orchestrator, that publishes them once the ambient transaction
// commits.
type OrchestratorFunc[I any] func(ctx context.Context, in I, delegates Delegates) (dispatch.HandlerResult, []dispatch.Outbound, error)
