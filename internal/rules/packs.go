package rules

import (
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// packKey identifies a rule pack by (id, version).
type packKey struct {
	ID      string
	Version string
}

// packRegistry holds every shipped rule pack plus its compiled conditional
// program (§4.3: "pack-scoped boolean conditions ... expressed as compiled
// expr-lang/expr programs").
type packRegistry struct {
	packs map[packKey]contracts.RulePack
	// condition maps a pack key to the compiled expression deciding whether
	// that pack's extra rules apply to the candidate evaluation.
	condition map[packKey]*compiledCondition
}

func newPackRegistry() *packRegistry {
	r := &packRegistry{
		packs:     make(map[packKey]contracts.RulePack),
		condition: make(map[packKey]*compiledCondition),
	}

	globalDefault := contracts.RulePack{
		ID:          "global-default",
		Version:     "2026-02-08",
		Description: "Global logistics baseline validations",
		Regulation:  "Global baseline",
	}
	australiaExport := contracts.RulePack{
		ID:          "australia-export",
		Version:     "2026-02-08",
		Description: "Australian export controls and declarations",
		Regulation:  "ABF/ICS guidance",
	}
	dgIATA := contracts.RulePack{
		ID:          "dg-iata",
		Version:     "2026-02-08",
		Description: "Dangerous goods checks for IATA declarations",
		Regulation:  "IATA DGR",
	}

	r.register(globalDefault, "false") // global-default has no extra pack-conditional rules
	r.register(australiaExport, `Pack.ID == "australia-export"`)
	r.register(dgIATA, `Pack.ID == "dg-iata"`)

	return r
}

func (r *packRegistry) register(pack contracts.RulePack, condition string) {
	key := packKey{ID: pack.ID, Version: pack.Version}
	r.packs[key] = pack
	compiled, err := compileCondition(condition)
	if err != nil {
		// Shipped pack conditions are fixed literals above; a compile failure
		// here means a programming error, not bad user input.
		panic("rules: invalid pack condition for " + pack.ID + ": " + err.Error())
	}
	r.condition[key] = compiled
}

// resolve implements §4.3's `_resolve_pack`: both absent selects defaultKey;
// either present looks up the merged key; unknown falls back silently to
// defaultKey (never an error).
func (r *packRegistry) resolve(packID, packVersion string, defaultKey packKey) contracts.RulePack {
	if packID == "" && packVersion == "" {
		return r.packs[defaultKey]
	}
	key := packKey{ID: packID, Version: packVersion}
	if key.ID == "" {
		key.ID = defaultKey.ID
	}
	if key.Version == "" {
		key.Version = defaultKey.Version
	}
	if pack, ok := r.packs[key]; ok {
		return pack
	}
	return r.packs[defaultKey]
}

func (r *packRegistry) applies(pack contracts.RulePack) bool {
	key := packKey{ID: pack.ID, Version: pack.Version}
	cond, ok := r.condition[key]
	if !ok {
		return false
	}
	return cond.evalAppliesTo(pack)
}
