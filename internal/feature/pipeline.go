// Package feature turns a paired (earlier/later) bureau table into the
// engineered table of credit-risk indicators: rolling delinquency maxima,
// utilisation ratios, customer rollups and coalesced fields.
//
// Every transformation is a named Pass that declares the columns it needs
// and writes. The planner decides up front, from the input header alone,
// which passes run; a pass whose inputs are missing is skipped entirely.
package feature

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/table"
)

// ErrMissingCustomerColumn is returned when the input has no customer_no column.
var ErrMissingCustomerColumn = eris.New("feature: input table has no customer_no column")

// Options tunes business constants of the pipeline. Zero fields take the
// DefaultOptions value.
type Options struct {
	// CCPriorityCode identifies credit-card accounts in priority_3_*.
	CCPriorityCode string
	// NewAccountMaxMonths is the largest diff_sin_open_y that still counts as
	// new. It must be positive.
	NewAccountMaxMonths float64
	// RankByCustomer partitions rn by customer as well as loan type.
	RankByCustomer bool
	// DateLayouts are tried in order when parsing date_opened.
	DateLayouts []string
}

// DefaultDateLayouts covers the date forms seen in bureau exports.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"01/02/2006",
	"02 Jan 2006",
	"02-Jan-2006",
}

// DefaultOptions returns the production constants.
func DefaultOptions() Options {
	return Options{
		CCPriorityCode:      "01.0 CC",
		NewAccountMaxMonths: 3,
		DateLayouts:         DefaultDateLayouts,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CCPriorityCode == "" {
		o.CCPriorityCode = def.CCPriorityCode
	}
	if o.NewAccountMaxMonths <= 0 {
		o.NewAccountMaxMonths = def.NewAccountMaxMonths
	}
	if len(o.DateLayouts) == 0 {
		o.DateLayouts = def.DateLayouts
	}
	return o
}

// Passes returns every pass in execution order: temporal rollups,
// utilisation, coalescing and rollups, then null normalization last.
func Passes() []Pass {
	var passes []Pass
	passes = append(passes, temporalPasses()...)
	passes = append(passes, utilisationPasses()...)
	passes = append(passes, rollupPasses()...)
	passes = append(passes, normalizePass())
	return passes
}

// PlanFor decides which passes run for an input with the given columns.
func PlanFor(columns []string) Plan {
	return NewPlan(columns, Passes())
}

// Engineer runs the full feature pipeline on a copy of in and returns the
// engineered table. The input is left untouched.
func Engineer(in *table.Table, opts Options) (*table.Table, error) {
	if !in.Has(CustomerNo) {
		return nil, ErrMissingCustomerColumn
	}
	opts = opts.withDefaults()

	plan := PlanFor(in.Names())
	out := in.Clone()
	plan.Run(out, opts)

	zap.L().Info("feature: pipeline complete",
		zap.Int("rows", out.Len()),
		zap.Int("columns", len(out.Names())),
		zap.Int("passes_run", len(plan.Executed())),
		zap.Int("passes_skipped", len(plan.Skipped())),
	)
	return out, nil
}
