package envelope

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRegistryAlreadyBuilt is returned by Build when called more than once in
// the same process. The registry is a per-process immutable singleton
// (spec §9 "Global mutable state → per-process immutable registry"); all
// "singletons" are constructed at startup and frozen thereafter. Changes
// require a full process restart, never a lazy rebuild.
var ErrRegistryAlreadyBuilt = errors.New("envelope: registry already built in this process")

// ErrContractDrift is returned when a declared contract references a topic
// or handler that cannot be resolved at Build time. This is fatal: per
// spec §7 ContractDriftError, the process refuses to start rather than run
// with an unresolved handler.
var ErrContractDrift = errors.New("envelope: contract drift, handler cannot be resolved at startup")

// Contract declares, for one node, the topics it subscribes to, the topics
// it may publish to, and a human-readable name used in drift diagnostics.
// Concrete handler entry points live in package dispatch; Contract here is
// the static, data-only declaration validated against the topic registry.
type Contract struct {
	Name        string
	Subscribes  []Topic
	Publishes   []Topic
	InputType   string
	OutputTypes []string
}

// Registry is the frozen, build-time-constructed topic/contract table.
// It is safe for concurrent reads from many goroutines because it is never
// mutated after Build returns.
type Registry struct {
	contracts map[string]Contract
	topics    map[string]Topic
}

var (
	built     bool
	buildOnce sync.Once
	buildErr  error
	instance  *Registry
	buildMu   sync.Mutex
)

// Build constructs the immutable registry from the given contracts,
// validating that every subscribed/published topic is well-formed and that
// no two contracts declare conflicting subscriptions to the same topic with
// different input types. Build may only be called once per process; a
// second call returns ErrRegistryAlreadyBuilt.
func Build(contracts ...Contract) (*Registry, error) {
	buildMu.Lock()
	defer buildMu.Unlock()

	if built {
		return nil, ErrRegistryAlreadyBuilt
	}

	reg := &Registry{
		contracts: make(map[string]Contract, len(contracts)),
		topics:    make(map[string]Topic),
	}

	inputTypes := make(map[string]string)

	for _, c := range contracts {
		if _, exists := reg.contracts[c.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate contract %q", ErrContractDrift, c.Name)
		}

		for _, t := range append(append([]Topic{}, c.Subscribes...), c.Publishes...) {
			if _, err := ParseTopic(t.String()); err != nil {
				return nil, fmt.Errorf("%w: contract %q: %v", ErrContractDrift, c.Name, err)
			}
		}

		for _, t := range c.Subscribes {
			if prev, ok := inputTypes[t.String()]; ok && prev != c.InputType {
				return nil, fmt.Errorf("%w: topic %q subscribed with input types %q and %q",
					ErrContractDrift, t.String(), prev, c.InputType)
			}

			inputTypes[t.String()] = c.InputType
			reg.topics[t.String()] = t
		}

		for _, t := range c.Publishes {
			reg.topics[t.String()] = t
		}

		reg.contracts[c.Name] = c
	}

	built = true
	instance = reg

	return reg, nil
}

// Reset clears the built-once guard. It exists solely for test isolation
// (each test package that calls Build needs a clean process-local state) and
// must never be called from production code paths.
func Reset() {
	buildMu.Lock()
	defer buildMu.Unlock()

	built = false
	instance = nil
}

// Contract looks up a declared contract by name.
func (r *Registry) Contract(name string) (Contract, bool) {
	c, ok := r.contracts[name]

	return c, ok
}

// ResolveTopic looks up a topic previously declared by some contract's
// Subscribes/Publishes list. Handlers must never construct ad-hoc topics
// outside the registry; an envelope addressed to an unresolved topic is a
// ContractDriftError at the dispatch layer.
func (r *Registry) ResolveTopic(name string) (Topic, bool) {
	t, ok := r.topics[name]

	return t, ok
}

// Contracts returns all declared contracts, in no particular order. Callers
// must not mutate the returned slice's underlying contracts.
func (r *Registry) Contracts() []Contract {
	out := make([]Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c)
	}

	return out
}
