package feedback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onex-learning/patternd/internal/patternstore"
)

func TestDecodeEvidenceSignals(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want EvidenceSignals
	}{
		{
			name: "empty payload decodes to zero value",
			raw:  "",
			want: EvidenceSignals{},
		},
		{
			name: "test results present",
			raw:  `{"test_results":{"passed":3,"failed":0}}`,
			want: EvidenceSignals{TestResultsPresent: true},
		},
		{
			name: "run succeeded",
			raw:  `{"run_id":"run-1","run_status":"succeeded"}`,
			want: EvidenceSignals{RunID: "run-1", RunSucceeded: true},
		},
		{
			name: "run failed",
			raw:  `{"run_id":"run-1","run_status":"failed"}`,
			want: EvidenceSignals{RunID: "run-1", RunSucceeded: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}

			got, err := DecodeEvidenceSignals(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want.TestResultsPresent, got.TestResultsPresent)
			assert.Equal(t, tt.want.RunID, got.RunID)
			assert.Equal(t, tt.want.RunSucceeded, got.RunSucceeded)
		})
	}
}

func TestDecodeEvidenceSignals_MalformedJSON(t *testing.T) {
	_, err := DecodeEvidenceSignals(json.RawMessage(`{not json`))
	require.Error(t, err)
}

func TestComputeEvidenceTier(t *testing.T) {
	tests := []struct {
		name    string
		signals EvidenceSignals
		want    patternstore.EvidenceTier
	}{
		{
			name:    "test results present wins regardless of run status",
			signals: EvidenceSignals{TestResultsPresent: true, RunSucceeded: false},
			want:    patternstore.TierMeasured,
		},
		{
			name:    "run_id present and succeeded",
			signals: EvidenceSignals{RunID: "run-1", RunSucceeded: true},
			want:    patternstore.TierMeasured,
		},
		{
			name:    "run_id present but failed falls back to observed",
			signals: EvidenceSignals{RunID: "run-1", RunSucceeded: false},
			want:    patternstore.TierObserved,
		},
		{
			name:    "no signals at all",
			signals: EvidenceSignals{},
			want:    patternstore.TierObserved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeEvidenceTier(tt.signals))
		})
	}
}
