package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patternStoredPayload struct {
	PatternID string `json:"pattern_id"`
	Version   int    `json:"version"`
}

func TestToMessage_FromMessage_RoundTrip(t *testing.T) {
	topic := NewTopic("prod", Event, "pattern-store", "pattern-stored", 1)

	original, err := New(topic, "pattern-stored", time.Now().UTC().Truncate(time.Millisecond), 1,
		patternStoredPayload{PatternID: "P1", Version: 1})
	require.NoError(t, err)

	msg, err := ToMessage(original, topic.PartitionKey("h1", original.EventID))
	require.NoError(t, err)
	assert.Equal(t, []byte("h1"), msg.Key)

	decoded, err := FromMessage[patternStoredPayload](msg)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, decoded.EventID)
	assert.Equal(t, original.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, original.EventType, decoded.EventType)
	assert.Equal(t, original.SchemaVersion, decoded.SchemaVersion)
	assert.True(t, original.EmittedAt.Equal(decoded.EmittedAt))
	assert.Equal(t, original.Payload, decoded.Payload)
}

func TestFromMessage_RejectsMissingEmittedAt(t *testing.T) {
	topic := NewTopic("prod", Event, "pattern-store", "pattern-stored", 1)

	original, err := New(topic, "pattern-stored", time.Now(), 1, patternStoredPayload{PatternID: "P1", Version: 1})
	require.NoError(t, err)

	msg, err := ToMessage(original, []byte("h1"))
	require.NoError(t, err)

	for i, h := range msg.Headers {
		if h.Key == HeaderEmittedAt {
			msg.Headers[i].Value = []byte("not-a-timestamp")
		}
	}

	_, err = FromMessage[patternStoredPayload](msg)
	require.Error(t, err)
}
