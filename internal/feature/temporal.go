package feature

import (
	"unicode/utf8"

	"github.com/sells-group/credit-delta/internal/table"
)

// temporalPasses builds the rolling-delinquency passes: per-period window
// maxima, window diffs, the calendar-skew status adjustment, and the
// detected-delinquency extremes.
func temporalPasses() []Pass {
	var passes []Pass
	for _, period := range []string{Earlier, Later} {
		for _, months := range Windows {
			passes = append(passes, windowPass(months, period))
		}
	}
	for _, months := range Windows {
		passes = append(passes, windowDiffPass(months))
	}
	passes = append(passes, statusAdjustmentPass(), detectedPass())
	return passes
}

// windowPass takes the maximum of a period's first months history columns.
// Months with no report count as zero once the maximum is taken.
func windowPass(months int, period string) Pass {
	requires := make([]string, months)
	for i := range requires {
		requires[i] = HistoryColumn(i+1, period)
	}
	out := WindowColumn(months, period)

	return Pass{
		Name:     "window_" + out,
		Stage:    StageTemporal,
		Requires: requires,
		Produces: []string{out},
		Apply: func(t *table.Table, _ Options) {
			hist := make([][]float64, months)
			for i, c := range requires {
				hist[i] = t.Floats(c)
			}
			vals := make([]float64, t.Len())
			row := make([]float64, months)
			for r := range vals {
				for m := range hist {
					row[m] = hist[m][r]
				}
				vals[r] = zeroIfNaN(nanMax(row...))
			}
			t.SetFloats(out, vals)
		},
	}
}

func windowDiffPass(months int) Pass {
	x, y := WindowColumn(months, Earlier), WindowColumn(months, Later)
	out := WindowDiffColumn(months)

	return Pass{
		Name:     "diff_" + out,
		Stage:    StageTemporal,
		Requires: []string{x, y},
		Produces: []string{out},
		Apply: func(t *table.Table, _ Options) {
			xs, ys := t.Floats(x), t.Floats(y)
			vals := make([]float64, t.Len())
			for i := range vals {
				vals[i] = ys[i] - xs[i]
			}
			t.SetFloats(out, vals)
		},
	}
}

// statusAdjustmentPass corrects for calendar skew between snapshots. When the
// later payment-status string is more than one month longer than the earlier
// one, the later snapshot's first status is one month too recent, so the
// second and third statuses stand in for the first and second.
func statusAdjustmentPass() Pass {
	histX, histY := P(PayStatusHistory, Earlier), P(PayStatusHistory, Later)
	sx := P(LatestStatus, Earlier)
	s1, s2, s3 := P(LatestStatus, Later), P(LatestStatus2, Later), P(LatestStatus3, Later)

	lenX, lenY := P(StringLength, Earlier), P(StringLength, Later)
	adj1, adj2 := P(LatestStatus, Later)+"_adjusted", P(LatestStatus2, Later)+"_adjusted"

	return Pass{
		Name:     "status_adjustment",
		Stage:    StageTemporal,
		Requires: []string{histX, histY, sx, s1, s2, s3},
		Produces: []string{lenX, lenY, adj1, adj2, MaxDelinq2M, LatestStatusDiff},
		Apply: func(t *table.Table, _ Options) {
			n := t.Len()
			lx, ly := runeLengths(t, histX), runeLengths(t, histY)
			vx, v1, v2, v3 := t.Floats(sx), t.Floats(s1), t.Floats(s2), t.Floats(s3)

			a1 := make([]float64, n)
			a2 := make([]float64, n)
			max2 := make([]float64, n)
			diff := make([]float64, n)
			for i := 0; i < n; i++ {
				skewed := ly[i]-lx[i] > 1
				if skewed {
					a1[i], a2[i] = v2[i], v3[i]
				} else {
					a1[i], a2[i] = v1[i], v2[i]
				}
				max2[i] = nanMax(a1[i], a2[i], v1[i])
				if skewed {
					diff[i] = max2[i] - vx[i]
				} else {
					diff[i] = v1[i] - vx[i]
				}
			}

			t.SetFloats(lenX, lx)
			t.SetFloats(lenY, ly)
			t.SetFloats(adj1, a1)
			t.SetFloats(adj2, a2)
			t.SetFloats(MaxDelinq2M, max2)
			t.SetFloats(LatestStatusDiff, diff)
		},
	}
}

// runeLengths returns the character length of each cell; nulls have length 0.
func runeLengths(t *table.Table, col string) []float64 {
	vals, valid := t.Strings(col)
	out := make([]float64, len(vals))
	for i, v := range vals {
		if valid[i] {
			out[i] = float64(utf8.RuneCountInString(v))
		}
	}
	return out
}

// detectedPass reduces over whichever detected-window diffs the input
// supports; shorter histories still get extremes over their shorter windows.
func detectedPass() Pass {
	diffCols := make([]string, len(detectedWindows))
	for i, m := range detectedWindows {
		diffCols[i] = WindowDiffColumn(m)
	}

	return Pass{
		Name:     "delinquency_detected",
		Stage:    StageTemporal,
		AnyOf:    diffCols,
		Produces: []string{MaxDelinqFound, MinDelinqFound},
		Apply: func(t *table.Table, _ Options) {
			var diffs [][]float64
			for _, c := range diffCols {
				if t.Has(c) {
					diffs = append(diffs, t.Floats(c))
				}
			}
			hi := make([]float64, t.Len())
			lo := make([]float64, t.Len())
			row := make([]float64, len(diffs))
			for r := range hi {
				for d := range diffs {
					row[d] = diffs[d][r]
				}
				hi[r], lo[r] = nanMax(row...), nanMin(row...)
			}
			t.SetFloats(MaxDelinqFound, hi)
			t.SetFloats(MinDelinqFound, lo)
		},
	}
}
