package feature

import (
	"github.com/sells-group/credit-delta/internal/table"
)

func utilisationPasses() []Pass {
	var passes []Pass
	for _, period := range []string{Earlier, Later} {
		passes = append(passes, utilisationPass(period), ccUtilisationPass(period))
	}
	passes = append(passes,
		diffPass(Utilisation, UtilDiff, UtilPctDiff),
		diffPass(OverallUtil, OverallDiff, OverallPctDiff),
		diffPass(OverallCCUtil, OverallCCDiff, OverallCCPctDiff),
	)
	return passes
}

// utilisationPass computes per-account exposure and utilisation for one
// period, then the customer totals over active accounts, broadcast to every
// row of the customer.
//
// Post: current/high balance and credit limit are numeric; utilisation and
// overall utilisation are finite and never NaN.
func utilisationPass(period string) Pass {
	cur, high, limit := P(CurrentBalance, period), P(HighBalance, period), P(CreditLimit, period)
	flag := P(ActivityFlag, period)
	lim, active, util := P(LimDisbursed, period), P(ActiveBalance, period), P(Utilisation, period)
	totLim, totActive, overall := P(TotalLim, period), P(TotalActive, period), P(OverallUtil, period)

	return Pass{
		Name:     "utilisation_" + period,
		Stage:    StageUtilisation,
		Requires: []string{CustomerNo, cur, high, limit, flag},
		Produces: []string{lim, active, util, totLim, totActive, overall},
		Apply: func(t *table.Table, _ Options) {
			n := t.Len()
			curs, highs, limits := t.Floats(cur), t.Floats(high), t.Floats(limit)
			t.SetFloats(cur, curs)
			t.SetFloats(high, highs)
			t.SetFloats(limit, limits)
			flags := t.Floats(flag)

			lims := make([]float64, n)
			actives := make([]float64, n)
			utils := make([]float64, n)
			for i := 0; i < n; i++ {
				lims[i] = nanMax(highs[i], limits[i])
				if flags[i] == 1 {
					actives[i] = curs[i]
				}
				utils[i] = safeDiv(curs[i], lims[i])
			}

			isActive := func(i int) bool { return flags[i] == 1 }
			parts := byCustomer(t)
			tl := parts.broadcast(lims, isActive, nanSum)
			ta := parts.broadcast(actives, isActive, nanSum)

			overalls := make([]float64, n)
			for i := range overalls {
				overalls[i] = safeDiv(ta[i], tl[i])
			}

			t.SetFloats(lim, lims)
			t.SetFloats(active, actives)
			t.SetFloats(util, utils)
			t.SetFloats(totLim, tl)
			t.SetFloats(totActive, ta)
			t.SetFloats(overall, overalls)
		},
	}
}

// ccUtilisationPass narrows the customer totals to active credit-card
// accounts. The ratio is taken on qualifying rows and its group maximum is
// broadcast; customers without a qualifying account get 0.
func ccUtilisationPass(period string) Pass {
	flag, prio := P(ActivityFlag, period), P(Priority, period)
	lim, active := P(LimDisbursed, period), P(ActiveBalance, period)
	ccLim, ccActive, ccUtil := P(TotalCCLim, period), P(TotalCCActive, period), P(OverallCCUtil, period)

	return Pass{
		Name:     "cc_utilisation_" + period,
		Stage:    StageUtilisation,
		Requires: []string{CustomerNo, lim, active, flag, prio},
		Produces: []string{ccLim, ccActive, ccUtil},
		Apply: func(t *table.Table, opts Options) {
			flags := t.Floats(flag)
			prios, valid := t.Strings(prio)
			isCC := func(i int) bool {
				return flags[i] == 1 && valid[i] && prios[i] == opts.CCPriorityCode
			}

			parts := byCustomer(t)
			tl := parts.broadcast(t.Floats(lim), isCC, nanSum)
			ta := parts.broadcast(t.Floats(active), isCC, nanSum)

			ratios := make([]float64, t.Len())
			for i := range ratios {
				ratios[i] = safeDiv(ta[i], tl[i])
			}
			cc := parts.broadcast(ratios, isCC, nanMax)
			for i := range cc {
				cc[i] = zeroIfNaN(cc[i])
			}

			t.SetFloats(ccLim, tl)
			t.SetFloats(ccActive, ta)
			t.SetFloats(ccUtil, cc)
		},
	}
}

// diffPass writes later-minus-earlier and that change relative to the
// earlier value; an undefined relative change is 0.
func diffPass(base, diffCol, pctCol string) Pass {
	x, y := P(base, Earlier), P(base, Later)

	return Pass{
		Name:     "diff_" + base,
		Stage:    StageUtilisation,
		Requires: []string{x, y},
		Produces: []string{diffCol, pctCol},
		Apply: func(t *table.Table, _ Options) {
			xs, ys := t.Floats(x), t.Floats(y)
			diffs := make([]float64, t.Len())
			pcts := make([]float64, t.Len())
			for i := range diffs {
				diffs[i] = ys[i] - xs[i]
				pcts[i] = safeDiv(diffs[i], xs[i])
			}
			t.SetFloats(diffCol, diffs)
			t.SetFloats(pctCol, pcts)
		},
	}
}
