// Package rules implements the validation rules engine (§4.3): a versioned
// pack registry of doc-type-scoped validation rules, evaluated in a fixed
// order against a document's extracted field map.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

var (
	awbNumberPattern = regexp.MustCompile(`^\d{3}-\d{8}$`)
	unNumberPattern  = regexp.MustCompile(`^UN\d+$`)
)

var validPackingGroups = map[string]bool{"I": true, "II": true, "III": true}

// Engine is the stateless, pure (given its pack registry and sanctions hook)
// RulesEngine implementation described in §4.3.
type Engine struct {
	registry    *packRegistry
	defaultKey  packKey
	sanctions   contracts.SanctionsHook
}

// New constructs an Engine with the shipped pack registry. defaultPackID and
// defaultPackVersion select the pack used when neither is specified and as
// the fallback for an unresolvable pack selection; sanctionsHook is injected
// so deployments can swap in a real restricted-party screen.
func New(defaultPackID, defaultPackVersion string, sanctionsHook contracts.SanctionsHook) *Engine {
	if sanctionsHook == nil {
		sanctionsHook = DefaultSanctionsHook
	}
	return &Engine{
		registry:   newPackRegistry(),
		defaultKey: packKey{ID: defaultPackID, Version: defaultPackVersion},
		sanctions:  sanctionsHook,
	}
}

// Evaluate runs every applicable rule against fields in the fixed order
// documented in §4.3 and returns the ordered result list.
func (e *Engine) Evaluate(_ context.Context, docType string, fields map[string]string, packID, packVersion string) []contracts.RuleResult {
	pack := e.registry.resolve(packID, packVersion, e.defaultKey)
	var results []contracts.RuleResult

	emit := func(code string, passed bool, severity models.Severity, message, explanation string) {
		results = append(results, contracts.RuleResult{
			Code:        code,
			Passed:      passed,
			Severity:    severity,
			Message:     message,
			Explanation: explanation,
			PackID:      pack.ID,
			PackVersion: pack.Version,
		})
	}

	// 1. awb.format — only when doc_type == "awb".
	if docType == "awb" {
		awbNumber := fields["awb_number"]
		passed := awbNumberPattern.MatchString(awbNumber)
		emit("awb.format", passed, models.SeverityHigh,
			"AWB number must match format NNN-NNNNNNNN",
			fmt.Sprintf("awb_number=%q", awbNumber))
	}

	// 2. shipment.weight — only when weight_kg present.
	if weightRaw, ok := fields["weight_kg"]; ok {
		weight, err := strconv.ParseFloat(weightRaw, 64)
		passed := err == nil && weight > 0
		emit("shipment.weight", passed, models.SeverityMedium,
			"weight_kg must parse as a positive number",
			fmt.Sprintf("weight_kg=%q", weightRaw))
	}

	// 3. compliance.hs_code — only when hs_code present.
	if hsCode, ok := fields["hs_code"]; ok {
		passed := isNumeric(hsCode) && (len(hsCode) == 6 || len(hsCode) == 8 || len(hsCode) == 10)
		emit("compliance.hs_code", passed, models.SeverityHigh,
			"hs_code must be numeric with length 6, 8, or 10",
			fmt.Sprintf("hs_code=%q", hsCode))
	}

	// 4. Pack-conditional rules, in registration order, only when this pack
	// id matches the compiled pack condition.
	if e.registry.applies(pack) {
		switch pack.ID {
		case "australia-export":
			destination := fields["destination"]
			passed := destination != ""
			emit("aeca.destination", passed, models.SeverityHigh,
				"destination is required",
				fmt.Sprintf("destination=%q", destination))

			restricted := strings.ToUpper(destination) == "IR"
			emit("aeca.restricted_destination", !restricted, models.SeverityHigh,
				"destination must not be a restricted country",
				fmt.Sprintf("destination=%q", destination))

		case "dg-iata":
			unNumber := fields["un_number"]
			passed := unNumberPattern.MatchString(unNumber)
			emit("dg.un_number", passed, models.SeverityHigh,
				"un_number must match format UN followed by digits",
				fmt.Sprintf("un_number=%q", unNumber))

			packingGroup := fields["packing_group"]
			passed = validPackingGroups[packingGroup]
			emit("dg.packing_group", passed, models.SeverityHigh,
				"packing_group must be one of I, II, III",
				fmt.Sprintf("packing_group=%q", packingGroup))
		}
	}

	// 5. compliance.sanctions — always appended.
	sanctionsPassed, explanation := e.sanctions(fields)
	emit("compliance.sanctions", sanctionsPassed, models.SeverityHigh,
		"sanctions screen over extracted field values", explanation)

	// 6. generic.required_fields — appended only when results is still
	// empty at this point. Because compliance.sanctions always appends
	// exactly one result immediately before this check runs, this rule is
	// unreachable in the shipped rule packs; retained for forward
	// compatibility with a future pack that disables the sanctions check.
	if len(results) == 0 {
		emit("generic.required_fields", false, models.SeverityHigh,
			"no extractable required fields found", "")
	}

	return results
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ contracts.RulesEngine = (*Engine)(nil)
