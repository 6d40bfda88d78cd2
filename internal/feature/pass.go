package feature

import (
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/table"
)

// Stage groups passes for logging and plan output.
type Stage string

const (
	StageTemporal    Stage = "temporal"
	StageUtilisation Stage = "utilisation"
	StageRollup      Stage = "rollup"
	StageNormalize   Stage = "normalize"
)

// Pass is one named derived-feature transformation. Requires lists the
// columns that must exist before it runs; AnyOf, when set, additionally
// needs at least one of its columns. Produces lists the columns it writes.
// A pass whose requirements are unmet is skipped, never run on partial data.
type Pass struct {
	Name     string
	Stage    Stage
	Requires []string
	AnyOf    []string
	Produces []string
	Apply    func(t *table.Table, opts Options)
}

// Step is a pass together with the planner's decision for it.
type Step struct {
	Pass    Pass
	Skipped bool
	Missing []string
}

// Plan is the ordered list of decisions for one input schema.
type Plan struct {
	Steps []Step
}

// NewPlan decides which passes run for an input with the given columns.
// Each pass that runs makes its Produces available to later passes.
func NewPlan(columns []string, passes []Pass) Plan {
	avail := make(map[string]bool, len(columns))
	for _, c := range columns {
		avail[c] = true
	}

	plan := Plan{Steps: make([]Step, 0, len(passes))}
	for _, p := range passes {
		var missing []string
		for _, r := range p.Requires {
			if !avail[r] {
				missing = append(missing, r)
			}
		}
		if len(p.AnyOf) > 0 && !slices.ContainsFunc(p.AnyOf, func(c string) bool { return avail[c] }) {
			missing = append(missing, p.AnyOf...)
		}
		step := Step{Pass: p, Skipped: len(missing) > 0, Missing: missing}
		if !step.Skipped {
			for _, c := range p.Produces {
				avail[c] = true
			}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

// Run applies every non-skipped step to t in order.
func (p Plan) Run(t *table.Table, opts Options) {
	for _, s := range p.Steps {
		if s.Skipped {
			zap.L().Debug("feature: pass skipped",
				zap.String("pass", s.Pass.Name),
				zap.Strings("missing", s.Missing),
			)
			continue
		}
		s.Pass.Apply(t, opts)
	}
}

// Executed returns the names of the passes that run.
func (p Plan) Executed() []string {
	var out []string
	for _, s := range p.Steps {
		if !s.Skipped {
			out = append(out, s.Pass.Name)
		}
	}
	return out
}

// Skipped returns the names of the passes that do not run.
func (p Plan) Skipped() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Skipped {
			out = append(out, s.Pass.Name)
		}
	}
	return out
}

// Produces reports whether any executed step writes column.
func (p Plan) Produces(column string) bool {
	for _, s := range p.Steps {
		if !s.Skipped && slices.Contains(s.Pass.Produces, column) {
			return true
		}
	}
	return false
}
