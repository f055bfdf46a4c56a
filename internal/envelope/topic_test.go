package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_StringAndParse_Command(t *testing.T) {
	topic := NewTopic("prod", Command, "pattern-store", "apply-transition", 1)
	rendered := topic.String()
	assert.Equal(t, "prod.onex.cmd.pattern-store.apply-transition.v1", rendered)

	parsed, err := ParseTopic(rendered)
	require.NoError(t, err)
	assert.Equal(t, topic, parsed)
}

func TestTopic_StringAndParse_Event(t *testing.T) {
	topic := NewTopic("staging", Event, "pattern-store", "pattern-promoted", 2)
	rendered := topic.String()
	assert.Equal(t, "staging.onex.evt.pattern-store.pattern-promoted.v2", rendered)

	parsed, err := ParseTopic(rendered)
	require.NoError(t, err)
	assert.Equal(t, topic, parsed)
}

func TestTopic_StringAndParse_DeadLetter(t *testing.T) {
	topic := NewTopic("prod", DeadLetter, "pattern-store", "", 1)
	rendered := topic.String()
	assert.Equal(t, "prod.onex.dlq.pattern-store.v1", rendered)

	parsed, err := ParseTopic(rendered)
	require.NoError(t, err)
	assert.Equal(t, topic, parsed)
}

func TestParseTopic_Invalid(t *testing.T) {
	_, err := ParseTopic("not-a-topic")
	require.ErrorIs(t, err, ErrInvalidTopic)

	_, err = ParseTopic("prod.wrong.cmd.domain.name.v1")
	require.ErrorIs(t, err, ErrInvalidTopic)

	_, err = ParseTopic("prod.onex.cmd.domain.name.bad")
	require.ErrorIs(t, err, ErrInvalidTopic)
}

func TestTopic_Partitioned(t *testing.T) {
	assert.True(t, NewTopic("prod", Command, "pattern-store", "apply-transition", 1).Partitioned())
	assert.True(t, NewTopic("prod", Command, "session-outcome", "record", 1).Partitioned())
	assert.False(t, NewTopic("prod", Event, "pattern-metrics-updated", "x", 1).Partitioned())
}

func TestTopic_PartitionKey(t *testing.T) {
	partitioned := NewTopic("prod", Command, "pattern-store", "apply-transition", 1)
	key := partitioned.PartitionKey("hash-abc", "event-1")
	assert.Equal(t, []byte("hash-abc"), key)

	fanout := NewTopic("prod", Event, "pattern-metrics-updated", "x", 1)
	k1 := fanout.PartitionKey("", "event-1")
	k2 := fanout.PartitionKey("", "event-1")
	k3 := fanout.PartitionKey("", "event-2")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
