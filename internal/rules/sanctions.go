package rules

import "strings"

// DefaultSanctionsHook flags presence of restricted keywords in the
// concatenated field values (§4.3 rule 5). It is the platform's built-in
// SanctionsHook; deployments needing a real restricted-party screen inject
// their own contracts.SanctionsHook at construction instead.
func DefaultSanctionsHook(fields map[string]string) (bool, string) {
	var sb strings.Builder
	for _, v := range fields {
		sb.WriteString(strings.ToLower(v))
		sb.WriteByte(' ')
	}
	combined := sb.String()

	if strings.Contains(combined, "restricted") || strings.Contains(combined, "sanctioned") {
		return false, "matched restricted keyword in extracted content"
	}
	return true, "no restricted keyword match"
}
