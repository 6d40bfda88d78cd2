// Package narrative turns the engineered table into per-customer text pairs:
// a factual profile report and an ordered list of Good/Bad change findings.
package narrative

import (
	"strings"
)

// Finding is one message emitted by a rule.
type Finding struct {
	Rule    string
	Verdict Verdict
	Message string
}

// Line renders the finding as it appears in the update narrative.
func (f Finding) Line() string {
	return string(f.Verdict) + ":- " + f.Message
}

// Engine evaluates a fixed rule list against customer groups. It is safe
// for concurrent use; rules hold no state.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine over the standard rule list.
func NewEngine() *Engine {
	return NewEngineWithRules(Rules())
}

// NewEngineWithRules returns an engine over a caller-supplied rule list.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []Rule { return e.rules }

// Evaluate runs every applicable rule in declared order and concatenates
// their findings. Rules whose required columns are absent are skipped.
func (e *Engine) Evaluate(g *Group) []Finding {
	var out []Finding
	for _, r := range e.rules {
		if !g.Has(r.Requires...) {
			continue
		}
		for _, msg := range r.Eval(g) {
			out = append(out, Finding{Rule: r.Name, Verdict: r.Verdict, Message: msg})
		}
	}
	return out
}

// Update renders the update narrative: one line per finding.
func (e *Engine) Update(g *Group) string {
	var b strings.Builder
	for _, f := range e.Evaluate(g) {
		b.WriteString(f.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// Info renders the profile report for g.
func (e *Engine) Info(g *Group) string {
	return InfoReport(g)
}
