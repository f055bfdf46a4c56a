package feedback

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/onex-learning/patternd/internal/config"
	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/patternstore"
	"github.com/onex-learning/patternd/internal/storage"
)

func TestPatternFeedbackEffectIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn := &storage.Connection{DB: testDB.Connection}

	store, err := patternstore.New(conn)
	require.NoError(t, err)

	deps := node.EffectDeps{Store: store, Env: "test"}

	t.Run("NoInjections_NonRetryableFailure", func(t *testing.T) {
		result, outbound, err := PatternFeedbackEffect(ctx, Input{
			SessionID: "session-no-injections",
			Outcome:   patternstore.OutcomeSuccess,
		}, deps)

		require.Error(t, err)
		require.Equal(t, dispatch.NonRetryableFailure, result)
		require.Empty(t, outbound)
	})

	t.Run("HappyPath_AppliesAndEmitsMetricsUpdate", func(t *testing.T) {
		sessionID := "session-happy"

		patternA, err := store.UpsertPattern(ctx, "p-a", "hash-feedback-a", patternstore.PatternFields{Confidence: 0.5})
		require.NoError(t, err)

		patternB, err := store.UpsertPattern(ctx, "p-b", "hash-feedback-b", patternstore.PatternFields{Confidence: 0.5})
		require.NoError(t, err)

		_, err = store.RecordInjection(ctx, patternstore.PatternInjection{
			PatternID: patternA, SessionID: sessionID, ContextType: "agent_context", Cohort: "treatment",
		})
		require.NoError(t, err)

		_, err = store.RecordInjection(ctx, patternstore.PatternInjection{
			PatternID: patternB, SessionID: sessionID, ContextType: "agent_context", Cohort: "treatment",
		})
		require.NoError(t, err)

		in := Input{
			SessionID:       sessionID,
			Outcome:         patternstore.OutcomeSuccess,
			CorrelationID:   "corr-happy",
			RunID:           "run-1",
			EvidenceSignals: json.RawMessage(`{"run_id":"run-1","run_status":"succeeded"}`),
		}

		result, outbound, err := PatternFeedbackEffect(ctx, in, deps)
		require.NoError(t, err)
		require.Equal(t, dispatch.Applied, result)
		require.Len(t, outbound, 1)
		require.Equal(t, "pattern-metrics-updated", outbound[0].EventType)

		payload, ok := outbound[0].Payload.(patternMetricsUpdated)
		require.True(t, ok)
		require.ElementsMatch(t, []string{patternA, patternB}, payload.Patterns)

		patterns, err := store.QueryPatterns(ctx, patternstore.PatternFilters{SignatureHash: "hash-feedback-a"}, 0)
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		require.Equal(t, patternstore.TierMeasured, patterns[0].EvidenceTier)
		require.Equal(t, 1, patterns[0].RollingMetrics.SuccessCount)

		// Replaying the same session must short-circuit as ALREADY_RECORDED.
		result, outbound, err = PatternFeedbackEffect(ctx, in, deps)
		require.NoError(t, err)
		require.Equal(t, dispatch.AlreadyApplied, result)
		require.Empty(t, outbound)
	})

	t.Run("MalformedEvidenceSignals_NonRetryableFailure", func(t *testing.T) {
		sessionID := "session-malformed"

		patternID, err := store.UpsertPattern(ctx, "p-c", "hash-feedback-c", patternstore.PatternFields{Confidence: 0.5})
		require.NoError(t, err)

		_, err = store.RecordInjection(ctx, patternstore.PatternInjection{
			PatternID: patternID, SessionID: sessionID, ContextType: "agent_context", Cohort: "control",
		})
		require.NoError(t, err)

		result, outbound, err := PatternFeedbackEffect(ctx, Input{
			SessionID:       sessionID,
			Outcome:         patternstore.OutcomeFailure,
			EvidenceSignals: json.RawMessage(`{not valid json`),
		}, deps)

		require.Error(t, err)
		require.Equal(t, dispatch.NonRetryableFailure, result)
		require.Empty(t, outbound)
	})
}
