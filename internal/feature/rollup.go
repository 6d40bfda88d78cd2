package feature

import (
	"sort"
	"time"

	"github.com/sells-group/credit-delta/internal/table"
)

const openDateLayout = "02 Jan, 2006"

func rollupPasses() []Pass {
	return []Pass{
		orderPass(),
		coalescePass(Priority, CoalPriority),
		coalescePass(LoanType, CoalLoanType),
		openDatePass(),
		riskScorePass(),
		activeAccountsPass(),
		activeCCAccountsPass(),
		rankPass(),
		newAccountPass(),
		effectiveDelinquencyPass(),
	}
}

// dateKey is a sortable open date: parsed when possible, raw text otherwise.
type dateKey struct {
	ok     bool
	parsed bool
	ts     time.Time
	raw    string
}

func dateKeys(t *table.Table, opts Options) []dateKey {
	vals, valid := t.Strings(DateOpened)
	keys := make([]dateKey, len(vals))
	for i, v := range vals {
		if !valid[i] {
			continue
		}
		keys[i] = dateKey{ok: true, raw: v}
		if ts, ok := parseDate(v, opts.DateLayouts); ok {
			keys[i].parsed, keys[i].ts = true, ts
		}
	}
	return keys
}

// before orders present dates ascending with nulls last. Parsed dates sort
// ahead of unparsable text, which compares lexically.
func (a dateKey) before(b dateKey) bool {
	switch {
	case a.ok != b.ok:
		return a.ok
	case !a.ok:
		return false
	case a.parsed != b.parsed:
		return a.parsed
	case a.parsed:
		return a.ts.Before(b.ts)
	default:
		return a.raw < b.raw
	}
}

// orderPass stably sorts rows by (later priority code, open date), nulls
// last. The order only makes coalescing and ranking deterministic; nothing
// downstream relies on it otherwise.
func orderPass() Pass {
	prio := P(Priority, Later)

	return Pass{
		Name:     "order_rows",
		Stage:    StageRollup,
		Requires: []string{prio, DateOpened},
		Apply: func(t *table.Table, opts Options) {
			prios, valid := t.Strings(prio)
			dates := dateKeys(t, opts)
			order := make([]int, t.Len())
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				i, j := order[a], order[b]
				if valid[i] != valid[j] {
					return valid[i]
				}
				if valid[i] && prios[i] != prios[j] {
					return prios[i] < prios[j]
				}
				return dates[i].before(dates[j])
			})
			t.Permute(order)
		},
	}
}

// coalescePass prefers the later value and falls back to the earlier one.
func coalescePass(base, out string) Pass {
	x, y := P(base, Earlier), P(base, Later)

	return Pass{
		Name:     "coalesce_" + base,
		Stage:    StageRollup,
		Requires: []string{x, y},
		Produces: []string{out},
		Apply: func(t *table.Table, _ Options) {
			xs, xok := t.Strings(x)
			ys, yok := t.Strings(y)
			vals := make([]string, t.Len())
			valid := make([]bool, t.Len())
			for i := range vals {
				switch {
				case yok[i]:
					vals[i], valid[i] = ys[i], true
				case xok[i]:
					vals[i], valid[i] = xs[i], true
				}
			}
			kind := t.Column(y).Kind
			if kind == table.Numeric || kind == table.Unknown {
				kind = table.Text
			}
			t.SetStrings(out, kind, vals, valid)
		},
	}
}

func openDatePass() Pass {
	return Pass{
		Name:     "coalesce_open_date",
		Stage:    StageRollup,
		Requires: []string{DateOpened},
		Produces: []string{CoalOpenDate},
		Apply: func(t *table.Table, opts Options) {
			keys := dateKeys(t, opts)
			vals := make([]string, t.Len())
			valid := make([]bool, t.Len())
			for i, k := range keys {
				if k.parsed {
					vals[i], valid[i] = k.ts.Format(openDateLayout), true
				}
			}
			t.SetStrings(CoalOpenDate, table.Text, vals, valid)
		},
	}
}

// riskScorePass replaces each period's score with the customer maximum.
func riskScorePass() Pass {
	x, y := P(RiskScore, Earlier), P(RiskScore, Later)

	return Pass{
		Name:     "risk_score",
		Stage:    StageRollup,
		Requires: []string{CustomerNo, x, y},
		Produces: []string{x, y, RiskScoreDiff},
		Apply: func(t *table.Table, _ Options) {
			parts := byCustomer(t)
			xs := parts.broadcast(t.Floats(x), nil, nanMax)
			ys := parts.broadcast(t.Floats(y), nil, nanMax)
			diffs := make([]float64, t.Len())
			for i := range diffs {
				diffs[i] = ys[i] - xs[i]
			}
			t.SetFloats(x, xs)
			t.SetFloats(y, ys)
			t.SetFloats(RiskScoreDiff, diffs)
		},
	}
}

func activeAccountsPass() Pass {
	fx, fy := P(ActivityFlag, Earlier), P(ActivityFlag, Later)
	ox, oy := P(TotalAccounts, Earlier), P(TotalAccounts, Later)

	return Pass{
		Name:     "active_accounts",
		Stage:    StageRollup,
		Requires: []string{CustomerNo, fx, fy},
		Produces: []string{ox, oy},
		Apply: func(t *table.Table, _ Options) {
			parts := byCustomer(t)
			t.SetFloats(ox, parts.broadcast(t.Floats(fx), nil, nanSum))
			t.SetFloats(oy, parts.broadcast(t.Floats(fy), nil, nanSum))
		},
	}
}

func activeCCAccountsPass() Pass {
	fx, fy := P(ActivityFlag, Earlier), P(ActivityFlag, Later)
	px, py := P(Priority, Earlier), P(Priority, Later)
	ox, oy := P(TotalCCAccounts, Earlier), P(TotalCCAccounts, Later)

	return Pass{
		Name:     "active_cc_accounts",
		Stage:    StageRollup,
		Requires: []string{CustomerNo, fx, fy, px, py},
		Produces: []string{ox, oy},
		Apply: func(t *table.Table, opts Options) {
			parts := byCustomer(t)
			count := func(flag, prio string) []float64 {
				flags := t.Floats(flag)
				prios, valid := t.Strings(prio)
				hits := make([]float64, t.Len())
				for i := range hits {
					if flags[i] == 1 && valid[i] && prios[i] == opts.CCPriorityCode {
						hits[i] = 1
					}
				}
				return parts.broadcast(hits, nil, nanSum)
			}
			t.SetFloats(ox, count(fx, px))
			t.SetFloats(oy, count(fy, py))
		},
	}
}

// rankPass numbers rows 1..K by ascending open date within each loan-type
// partition (optionally also split by customer). Ties and missing dates keep
// their current row order.
func rankPass() Pass {
	return Pass{
		Name:     "rank",
		Stage:    StageRollup,
		Requires: []string{CoalLoanType, DateOpened},
		Produces: []string{Rank},
		Apply: func(t *table.Table, opts Options) {
			types, typeOK := t.Strings(CoalLoanType)
			var custs []string
			if opts.RankByCustomer {
				custs, _ = t.Strings(CustomerNo)
			}

			type key struct {
				customer string
				loanType string
				null     bool
			}
			parts := make(map[key][]int)
			var order []key
			for i := range types {
				k := key{loanType: types[i], null: !typeOK[i]}
				if custs != nil {
					k.customer = custs[i]
				}
				if _, seen := parts[k]; !seen {
					order = append(order, k)
				}
				parts[k] = append(parts[k], i)
			}

			dates := dateKeys(t, opts)
			ranks := make([]float64, t.Len())
			for _, k := range order {
				rows := parts[k]
				sort.SliceStable(rows, func(a, b int) bool {
					return dates[rows[a]].before(dates[rows[b]])
				})
				for r, i := range rows {
					ranks[i] = float64(r + 1)
				}
			}
			t.SetFloats(Rank, ranks)
		},
	}
}

// newAccountPass flags accounts reported only in the later period and
// opened within the configured number of months.
func newAccountPass() Pass {
	ax, ay := P(AccountNumber, Earlier), P(AccountNumber, Later)
	since := P(DiffSinceOpen, Later)

	return Pass{
		Name:     "new_account_flag",
		Stage:    StageRollup,
		Requires: []string{ax, ay, since},
		Produces: []string{NewAccountFlag},
		Apply: func(t *table.Table, opts Options) {
			_, xok := t.Strings(ax)
			_, yok := t.Strings(ay)
			months := t.Floats(since)
			flags := make([]float64, t.Len())
			for i := range flags {
				if yok[i] && !xok[i] && months[i] <= opts.NewAccountMaxMonths {
					flags[i] = 1
				}
			}
			t.SetFloats(NewAccountFlag, flags)
		},
	}
}

// effectiveDelinquencyPass resolves the current DPD: the two-month maximum
// when the plain latest status is zero, otherwise the latest status.
func effectiveDelinquencyPass() Pass {
	s1 := P(LatestStatus, Later)

	return Pass{
		Name:     "effective_delinquency",
		Stage:    StageRollup,
		Requires: []string{s1, MaxDelinq2M},
		Produces: []string{EffectiveDPD},
		Apply: func(t *table.Table, _ Options) {
			latest, max2 := t.Floats(s1), t.Floats(MaxDelinq2M)
			vals := make([]float64, t.Len())
			for i := range vals {
				if latest[i] == 0 {
					vals[i] = max2[i]
				} else {
					vals[i] = latest[i]
				}
			}
			t.SetFloats(EffectiveDPD, vals)
		},
	}
}
