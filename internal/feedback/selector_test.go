package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectHeuristic(t *testing.T) {
	tests := []struct {
		env  string
		want Heuristic
	}{
		{"", EqualSplit{}},
		{"equal_split", EqualSplit{}},
		{"recency_weighted", RecencyWeighted{}},
		{"first_match", FirstMatch{}},
		{"unknown_value", EqualSplit{}},
	}

	for _, tt := range tests {
		if tt.env != "" {
			t.Setenv("ATTRIBUTION_HEURISTIC", tt.env)
		}

		assert.IsType(t, tt.want, SelectHeuristic())
	}
}
