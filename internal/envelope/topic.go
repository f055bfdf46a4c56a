package envelope

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Kind distinguishes commands (intent) from events (fact) in the canonical
// topic naming scheme: {env}.onex.cmd.{domain}.{name}.v{N} vs
// {env}.onex.evt.{domain}.{name}.v{N}.
type Kind string

const (
	// Command topics carry intent (e.g. apply a transition).
	Command Kind = "cmd"

	// Event topics carry fact (e.g. a transition was applied).
	Event Kind = "evt"

	// DeadLetter topics receive non-retryable or exhausted-retry envelopes:
	// {env}.onex.dlq.{domain}.v1.
	DeadLetter Kind = "dlq"
)

// ErrInvalidTopic is returned when a topic string does not match the
// canonical form.
var ErrInvalidTopic = errors.New("envelope: topic does not match canonical form")

// Topic is the canonical, parsed form of a bus topic name.
type Topic struct {
	Env     string
	Kind    Kind
	Domain  string
	Name    string
	Version int
}

// NewTopic constructs a Topic. For DeadLetter topics, name is ignored (DLQ
// topics are {env}.onex.dlq.{domain}.v{N}, with no {name} segment).
func NewTopic(env string, kind Kind, domain, name string, version int) Topic {
	return Topic{Env: env, Kind: kind, Domain: domain, Name: name, Version: version}
}

// String renders the canonical topic name.
func (t Topic) String() string {
	if t.Kind == DeadLetter {
		return fmt.Sprintf("%s.onex.%s.%s.v%d", t.Env, t.Kind, t.Domain, t.Version)
	}

	return fmt.Sprintf("%s.onex.%s.%s.%s.v%d", t.Env, t.Kind, t.Domain, t.Name, t.Version)
}

// ParseTopic parses a canonical topic string back into its components.
func ParseTopic(s string) (Topic, error) {
	parts := strings.Split(s, ".")

	// {env}.onex.{kind}.{domain}.v{N} (dlq, no name segment) has 5 parts.
	// {env}.onex.{kind}.{domain}.{name}.v{N} has 6 parts.
	switch len(parts) {
	case 5:
		if parts[1] != "onex" || Kind(parts[2]) != DeadLetter {
			return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
		}

		version, err := parseVersion(parts[4])
		if err != nil {
			return Topic{}, err
		}

		return Topic{Env: parts[0], Kind: DeadLetter, Domain: parts[3], Version: version}, nil
	case 6:
		if parts[1] != "onex" {
			return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
		}

		kind := Kind(parts[2])
		if kind != Command && kind != Event {
			return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
		}

		version, err := parseVersion(parts[5])
		if err != nil {
			return Topic{}, err
		}

		return Topic{Env: parts[0], Kind: kind, Domain: parts[3], Name: parts[4], Version: version}, nil
	default:
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
}

func parseVersion(segment string) (int, error) {
	if !strings.HasPrefix(segment, "v") {
		return 0, fmt.Errorf("%w: missing version suffix %q", ErrInvalidTopic, segment)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(segment, "v"))
	if err != nil {
		return 0, fmt.Errorf("%w: bad version suffix %q", ErrInvalidTopic, segment)
	}

	return version, nil
}

// Partitioned reports whether this topic mutates a single pattern's state and
// therefore must partition on signature_hash to guarantee per-pattern
// ordering (spec §4.1). Fan-out notification topics (projections, alerts)
// are not partitioned here and may round-robin.
func (t Topic) Partitioned() bool {
	switch t.Domain {
	case "pattern-store", "session-outcome", "decision-recorded":
		return true
	default:
		return false
	}
}

// PartitionKey returns the Kafka partition key for a message on this topic.
// Partitioned topics key on signatureHash to guarantee per-lineage ordering;
// fan-out topics hash eventID for a round-robin-like spread while remaining
// deterministic for replay.
func (t Topic) PartitionKey(signatureHash, eventID string) []byte {
	if t.Partitioned() && signatureHash != "" {
		return []byte(signatureHash)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(eventID))

	return []byte(strconv.FormatUint(h.Sum64(), 16))
}
