// Package lifecycle is the authoritative pattern lifecycle state machine:
// the legal-transition adjacency table, the promotion/demotion gates that
// decide whether a legal transition actually fires, and the anti-gaming
// guardrails consulted before auto-promotion.
package lifecycle

import "github.com/onex-learning/patternd/internal/patternstore"

// Status and EvidenceTier are the store's own closed enums; the FSM
// consumes them rather than redeclaring, since the store sits earlier in
// the dependency order and owns the projection the FSM decides over.
type (
	Status       = patternstore.LifecycleStatus
	EvidenceTier = patternstore.EvidenceTier
)

const (
	Candidate   = patternstore.StatusCandidate
	Provisional = patternstore.StatusProvisional
	Validated   = patternstore.StatusValidated
	Deprecated  = patternstore.StatusDeprecated
	Blacklisted = patternstore.StatusBlacklisted
)

// legalEdges mirrors patternstore's own edge table; kept here too because
// it is the FSM's contract, not an implementation detail of the store, and
// is the first check performed before any gate is evaluated (testable
// property 2: every successful transition matches a legal edge).
var legalEdges = map[Status]map[Status]bool{
	Candidate:   {Provisional: true, Blacklisted: true},
	Provisional: {Validated: true, Blacklisted: true},
	Validated:   {Deprecated: true, Blacklisted: true},
	Deprecated:  {Blacklisted: true},
	Blacklisted: {},
}

// LegalTransition reports whether to is reachable from from in one hop of
// the lifecycle graph. CANDIDATE -> PROVISIONAL -> VALIDATED -> DEPRECATED
// is the main line; BLACKLISTED is reachable from any non-terminal state
// and has no outgoing edges.
func LegalTransition(from, to Status) bool {
	return legalEdges[from][to]
}

// InitialStatus is the status assigned to a pattern on first observation.
const InitialStatus = Candidate
