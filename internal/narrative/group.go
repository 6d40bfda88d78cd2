package narrative

import (
	"fmt"
	"math"

	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/table"
)

// missing is rendered for columns the engineered table does not carry.
const missing = "N/A"

// Status is the derived lifecycle state of one account row.
type Status int

const (
	StatusActive Status = iota
	StatusNew
	StatusClosedThisPeriod
	StatusRemovedFromReport
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "New Account"
	case StatusClosedThisPeriod:
		return "Closed this Period"
	case StatusRemovedFromReport:
		return "Removed from Report"
	default:
		return "Active"
	}
}

// Group is a read-only view of one customer's rows in the engineered table,
// together with that customer's enquiries.
type Group struct {
	CustomerNo string
	Enquiries  []model.Enquiry

	t    *table.Table
	rows []int
}

// NewGroup views the given rows of t as one customer.
func NewGroup(t *table.Table, customerNo string, rows []int, enquiries []model.Enquiry) *Group {
	return &Group{CustomerNo: customerNo, Enquiries: enquiries, t: t, rows: rows}
}

// Len returns the number of account rows.
func (g *Group) Len() int { return len(g.rows) }

// Has reports whether every named column exists.
func (g *Group) Has(cols ...string) bool {
	for _, c := range cols {
		if !g.t.Has(c) {
			return false
		}
	}
	return true
}

// num returns row r's value; absent columns and unparsable cells are NaN.
func (g *Group) num(col string, r int) float64 {
	return g.t.Float(col, g.rows[r])
}

// text returns row r's value rendered for a sentence.
func (g *Group) text(col string, r int) string {
	if !g.t.Has(col) {
		return missing
	}
	s, ok := g.t.Str(col, g.rows[r])
	if !ok {
		return feature.NAValue
	}
	return s
}

// first renders the first row's value, or N/A when the column is absent.
func (g *Group) first(col string) string {
	if g.Len() == 0 || !g.t.Has(col) {
		return missing
	}
	return formatNum(g.num(col, 0))
}

// firstOr returns the first row's value, or def when absent.
func (g *Group) firstOr(col string, def float64) float64 {
	if g.Len() == 0 || !g.t.Has(col) {
		return def
	}
	return g.num(col, 0)
}

// max is the largest non-NaN value of col across the group, NaN when none.
func (g *Group) max(col string) float64 {
	out := math.NaN()
	for r := range g.rows {
		v := g.num(col, r)
		if !math.IsNaN(v) && (math.IsNaN(out) || v > out) {
			out = v
		}
	}
	return out
}

// sum adds the non-NaN values of col across the group.
func (g *Group) sum(col string) float64 {
	var s float64
	for r := range g.rows {
		if v := g.num(col, r); !math.IsNaN(v) {
			s += v
		}
	}
	return s
}

func (g *Group) flag(period string, r int) float64 {
	return g.num(feature.P(feature.ActivityFlag, period), r)
}

// effectiveDPD is the resolved current delinquency of row r, falling back
// to the plain latest status when the resolution was not computed.
func (g *Group) effectiveDPD(r int) float64 {
	if g.t.Has(feature.EffectiveDPD) {
		return g.num(feature.EffectiveDPD, r)
	}
	return g.num(feature.P(feature.LatestStatus, feature.Later), r)
}

// Status derives row r's lifecycle state. Removal outranks a new account,
// which outranks a closure.
func (g *Group) Status(r int) Status {
	switch {
	case g.text(feature.MergeIndicator, r) == "left_only":
		return StatusRemovedFromReport
	case g.num(feature.NewAccountFlag, r) == 1:
		return StatusNew
	case g.flag(feature.Earlier, r) == 1 && g.flag(feature.Later, r) == 0:
		return StatusClosedThisPeriod
	default:
		return StatusActive
	}
}

// formatNum renders a number in its shortest form; NaN renders as NA.
func formatNum(v float64) string {
	if math.IsNaN(v) {
		return feature.NAValue
	}
	return table.FormatFloat(v)
}

// percent renders a ratio as a percentage with two decimals.
func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
