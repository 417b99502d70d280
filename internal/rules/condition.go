package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// conditionEnv is the environment a compiled pack condition is evaluated
// against: the candidate pack under consideration.
type conditionEnv struct {
	Pack conditionPack
}

type conditionPack struct {
	ID      string
	Version string
}

// compiledCondition wraps a compiled expr-lang program so the pack registry
// can decide, per candidate pack, whether to append that pack's extra rules
// without a Go switch statement per pack id.
type compiledCondition struct {
	program *vm.Program
}

func compileCondition(code string) (*compiledCondition, error) {
	program, err := expr.Compile(code, expr.Env(conditionEnv{}))
	if err != nil {
		return nil, fmt.Errorf("compile pack condition %q: %w", code, err)
	}
	return &compiledCondition{program: program}, nil
}

func (c *compiledCondition) evalAppliesTo(pack contracts.RulePack) bool {
	env := conditionEnv{Pack: conditionPack{ID: pack.ID, Version: pack.Version}}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false
	}
	matched, _ := out.(bool)
	return matched
}
