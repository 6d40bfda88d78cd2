package feature

import (
	"math"

	"github.com/sells-group/credit-delta/internal/table"
)

// aggregate reduces the values of one partition's selected members.
type aggregate func(vals ...float64) float64

// partition is the row layout of a table split by customer. It is built once
// per pass so that a pass which reorders rows never sees stale indexes.
type partition struct {
	groups []table.Group
	rows   int
}

func byCustomer(t *table.Table) partition {
	return partition{groups: t.GroupBy(CustomerNo), rows: t.Len()}
}

// broadcast runs in two passes. First it reduces vals over the members of
// each group for which include is true; then it scatters that one value to
// every row of the group, selected or not. Groups with no selected member,
// and rows outside every group, receive NaN. Values never cross groups.
func (p partition) broadcast(vals []float64, include func(i int) bool, agg aggregate) []float64 {
	out := make([]float64, p.rows)
	for i := range out {
		out[i] = math.NaN()
	}

	for _, g := range p.groups {
		var members []float64
		for _, i := range g.Rows {
			if include == nil || include(i) {
				members = append(members, vals[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		v := agg(members...)
		for _, i := range g.Rows {
			out[i] = v
		}
	}
	return out
}
