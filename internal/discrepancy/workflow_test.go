package discrepancy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscargo/nexuscargo/platform/internal/discrepancy"
)

func TestScoreLowRisk(t *testing.T) {
	result := discrepancy.Score(discrepancy.ScoreInput{
		DeclaredWeightKg:    1000,
		ActualWeightKg:      1200,
		DeclaredValue:       5000,
		ActualValue:         5200,
		RouteRiskFactor:     0.2,
		HistoricalScoreBias: 0.1,
	})

	assert.Equal(t, 200.0, result.WeightDelta)
	assert.Equal(t, 200.0, result.ValueDelta)
	assert.InDelta(t, 0.1073, result.AnomalyScore, 0.0001)
	assert.False(t, result.Mismatch)
	assert.Equal(t, "low", result.RiskLevel)
}

func TestScoreMediumRiskMismatch(t *testing.T) {
	result := discrepancy.Score(discrepancy.ScoreInput{
		DeclaredWeightKg: 1000,
		ActualWeightKg:   2000,
		DeclaredValue:    1000,
		ActualValue:      2000,
	})

	assert.True(t, result.Mismatch)
	assert.Greater(t, result.AnomalyScore, 0.2)
}
