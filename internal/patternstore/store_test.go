package patternstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLegalEdge(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		from LifecycleStatus
		to   LifecycleStatus
		want bool
	}{
		{name: "candidate to provisional", from: StatusCandidate, to: StatusProvisional, want: true},
		{name: "provisional to validated", from: StatusProvisional, to: StatusValidated, want: true},
		{name: "validated to deprecated", from: StatusValidated, to: StatusDeprecated, want: true},
		{name: "any non-terminal to blacklisted", from: StatusCandidate, to: StatusBlacklisted, want: true},
		{name: "deprecated to blacklisted", from: StatusDeprecated, to: StatusBlacklisted, want: true},
		{name: "blacklisted is absorbing", from: StatusBlacklisted, to: StatusCandidate, want: false},
		{name: "skips provisional", from: StatusCandidate, to: StatusValidated, want: false},
		{name: "skips forward from deprecated", from: StatusDeprecated, to: StatusValidated, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLegalEdge(tt.from, tt.to))
		})
	}
}

func TestBuildQueryPatternsSQL(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("no filters, no limit", func(t *testing.T) {
		query, args := buildQueryPatternsSQL(PatternFilters{}, 0)
		assert.Empty(t, args)
		assert.NotContains(t, query, "LIMIT")
	})

	t.Run("signature hash and status filters append params in order", func(t *testing.T) {
		query, args := buildQueryPatternsSQL(PatternFilters{
			SignatureHash: "h1",
			Status:        StatusValidated,
		}, 10)

		assert.Equal(t, []any{"h1", StatusValidated, 10}, args)
		assert.Contains(t, query, "signature_hash = $1")
		assert.Contains(t, query, "lifecycle_status = $2")
		assert.Contains(t, query, "LIMIT $3")
	})
}
