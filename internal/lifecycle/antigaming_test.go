package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onex-learning/patternd/internal/patternstore"
)

func TestCheckAntiGaming(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	thresholds := LoadThresholds()
	domains := []patternstore.DomainCandidate{{Domain: "billing", Confidence: 0.8}}

	t.Run("no alert for healthy pattern", func(t *testing.T) {
		metrics := patternstore.NewRollingMetrics(20)
		for i := 0; i < 10; i++ {
			metrics = metrics.Record(patternstore.OutcomeSuccess)
		}

		alert := CheckAntiGaming(metrics, domains, thresholds)
		assert.False(t, alert.Active)
	})

	t.Run("goodhart violation on saturated rate before C_min", func(t *testing.T) {
		metrics := patternstore.NewRollingMetrics(20).Record(patternstore.OutcomeSuccess)

		alert := CheckAntiGaming(metrics, domains, thresholds)

		assert.True(t, alert.Active)
		assert.Equal(t, AlertGoodhartViolation, alert.Type)
		assert.Equal(t, SeverityWarn, alert.Severity)
	})

	t.Run("diversity constraint violation with no domain candidates", func(t *testing.T) {
		metrics := patternstore.NewRollingMetrics(20)
		for i := 0; i < 10; i++ {
			metrics = metrics.Record(patternstore.OutcomeSuccess)
		}

		alert := CheckAntiGaming(metrics, nil, thresholds)

		assert.True(t, alert.Active)
		assert.Equal(t, AlertDiversityConstraint, alert.Type)
		assert.Equal(t, SeverityBlocker, alert.Severity)
	})
}
