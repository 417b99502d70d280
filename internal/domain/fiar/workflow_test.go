package fiar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscargo/nexuscargo/platform/internal/domain/fiar"
)

func TestThreeWayMatchWithinTolerance(t *testing.T) {
	matched, discrepancies := fiar.ThreeWayMatch(100, 100.4, 100.3, 1)
	assert.True(t, matched)
	assert.Empty(t, discrepancies)
}

func TestThreeWayMatchOutsideTolerance(t *testing.T) {
	matched, discrepancies := fiar.ThreeWayMatch(120, 100, 101, 1)
	assert.False(t, matched)
	assert.ElementsMatch(t, []string{"invoice_vs_contract", "invoice_vs_delivery"}, discrepancies)
}
