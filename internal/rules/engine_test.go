package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/rules"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

func resultByCode(results []contracts.RuleResult, code string) (contracts.RuleResult, bool) {
	for _, r := range results {
		if r.Code == code {
			return r, true
		}
	}
	return contracts.RuleResult{}, false
}

func TestEngine_GlobalDefaultPack_AWBFormat(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "awb", map[string]string{
		"awb_number": "123-12345678",
		"weight_kg":  "10.5",
	}, "", "")

	r, ok := resultByCode(results, "awb.format")
	require.True(t, ok)
	assert.True(t, r.Passed)
}

func TestEngine_InvalidAWBFormatFails(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "awb", map[string]string{
		"awb_number": "not-an-awb",
	}, "", "")

	r, ok := resultByCode(results, "awb.format")
	require.True(t, ok)
	assert.False(t, r.Passed)
}

func TestEngine_UnknownPackFallsBackToDefault(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "invoice", map[string]string{}, "does-not-exist", "9.9.9")
	for _, r := range results {
		assert.Equal(t, "global-default", r.PackID)
	}
}

func TestEngine_AustraliaExportPack_RestrictedDestination(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "export", map[string]string{
		"destination": "ir",
	}, "australia-export", "2026-02-08")

	r, ok := resultByCode(results, "aeca.restricted_destination")
	require.True(t, ok)
	assert.False(t, r.Passed)

	r2, ok := resultByCode(results, "aeca.destination")
	require.True(t, ok)
	assert.True(t, r2.Passed)
}

func TestEngine_DGPack_ValidDeclaration(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "dg", map[string]string{
		"un_number":     "UN1230",
		"packing_group": "II",
	}, "dg-iata", "2026-02-08")

	un, ok := resultByCode(results, "dg.un_number")
	require.True(t, ok)
	assert.True(t, un.Passed)

	pg, ok := resultByCode(results, "dg.packing_group")
	require.True(t, ok)
	assert.True(t, pg.Passed)
}

func TestEngine_InvalidDGDeclarationFails(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "dg", map[string]string{
		"un_number":     "123",
		"packing_group": "IV",
	}, "dg-iata", "2026-02-08")

	un, ok := resultByCode(results, "dg.un_number")
	require.True(t, ok)
	assert.False(t, un.Passed)

	pg, ok := resultByCode(results, "dg.packing_group")
	require.True(t, ok)
	assert.False(t, pg.Passed)
}

func TestEngine_SanctionsHookFlagsRestrictedContent(t *testing.T) {
	engine := rules.New("global-default", "2026-02-08", nil)

	results := engine.Evaluate(context.Background(), "invoice", map[string]string{
		"consignee": "Sanctioned Corp",
	}, "", "")

	r, ok := resultByCode(results, "compliance.sanctions")
	require.True(t, ok)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Explanation, "restricted keyword")
}

func TestEngine_CustomSanctionsHookInjected(t *testing.T) {
	called := false
	engine := rules.New("global-default", "2026-02-08", func(fields map[string]string) (bool, string) {
		called = true
		return true, "always passes in this test"
	})

	engine.Evaluate(context.Background(), "invoice", map[string]string{"x": "y"}, "", "")
	assert.True(t, called)
}
