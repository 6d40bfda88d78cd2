package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilisation(t *testing.T) {
	tbl := readCSV(t, `customer_no,current_balance_x,high_balance_x,credit_limit_x,Activity_Flag_x,current_balance_y,high_balance_y,credit_limit_y,Activity_Flag_y
C1,1000,2000,5000,1,3000,2000,5000,1
C1,500,1000,,1,200,,1000,0
C2,100,0,,0,50,,,0
`)
	plan := runPasses(tbl, utilisationPasses())

	assert.Contains(t, plan.Skipped(), "cc_utilisation_x")
	assert.Contains(t, plan.Skipped(), "cc_utilisation_y")
	assert.Contains(t, plan.Skipped(), "diff_overall_cc_utilisation")
	assert.Contains(t, plan.Executed(), "diff_utilisation")
	assert.Contains(t, plan.Executed(), "diff_overall_utilisation")

	t.Run("per account", func(t *testing.T) {
		assert.Equal(t, []float64{5000, 1000, 0}, tbl.Floats(P(LimDisbursed, Earlier)))
		assert.Equal(t, 5000.0, tbl.Float(P(LimDisbursed, Later), 0))
		assert.Equal(t, 1000.0, tbl.Float(P(LimDisbursed, Later), 1))
		assert.True(t, math.IsNaN(tbl.Float(P(LimDisbursed, Later), 2)))

		assert.Equal(t, []float64{3000, 0, 0}, tbl.Floats(P(ActiveBalance, Later)))

		assert.InDelta(t, 0.2, tbl.Float(P(Utilisation, Earlier), 0), 1e-9)
		assert.InDelta(t, 0.5, tbl.Float(P(Utilisation, Earlier), 1), 1e-9)
		assert.InDelta(t, 0.6, tbl.Float(P(Utilisation, Later), 0), 1e-9)
		assert.InDelta(t, 0.2, tbl.Float(P(Utilisation, Later), 1), 1e-9)
	})

	t.Run("zero or missing limit yields zero utilisation", func(t *testing.T) {
		assert.Equal(t, 0.0, tbl.Float(P(Utilisation, Earlier), 2))
		assert.Equal(t, 0.0, tbl.Float(P(Utilisation, Later), 2))
	})

	t.Run("customer totals broadcast", func(t *testing.T) {
		for _, r := range []int{0, 1} {
			assert.Equal(t, 6000.0, tbl.Float(P(TotalLim, Earlier), r))
			assert.Equal(t, 1500.0, tbl.Float(P(TotalActive, Earlier), r))
			assert.InDelta(t, 0.25, tbl.Float(P(OverallUtil, Earlier), r), 1e-9)
			assert.Equal(t, 5000.0, tbl.Float(P(TotalLim, Later), r))
			assert.InDelta(t, 0.6, tbl.Float(P(OverallUtil, Later), r), 1e-9)
		}
	})

	t.Run("customer without active accounts", func(t *testing.T) {
		assert.True(t, math.IsNaN(tbl.Float(P(TotalLim, Earlier), 2)))
		assert.Equal(t, 0.0, tbl.Float(P(OverallUtil, Earlier), 2))
		assert.Equal(t, 0.0, tbl.Float(P(OverallUtil, Later), 2))
	})

	t.Run("diffs", func(t *testing.T) {
		assert.InDelta(t, 0.4, tbl.Float(UtilDiff, 0), 1e-9)
		assert.InDelta(t, 2.0, tbl.Float(UtilPctDiff, 0), 1e-9)
		assert.InDelta(t, -0.3, tbl.Float(UtilDiff, 1), 1e-9)
		assert.InDelta(t, -0.6, tbl.Float(UtilPctDiff, 1), 1e-9)
		assert.InDelta(t, 0.35, tbl.Float(OverallDiff, 0), 1e-9)
		assert.InDelta(t, 1.4, tbl.Float(OverallPctDiff, 0), 1e-9)
		assert.Equal(t, 0.0, tbl.Float(UtilPctDiff, 2))
	})

	for _, col := range []string{P(Utilisation, Earlier), P(Utilisation, Later), P(OverallUtil, Earlier), P(OverallUtil, Later), UtilPctDiff, OverallPctDiff} {
		for _, v := range tbl.Floats(col) {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s has non-finite value", col)
		}
	}
}

func TestCCUtilisation(t *testing.T) {
	tbl := readCSV(t, `customer_no,current_balance_y,high_balance_y,credit_limit_y,Activity_Flag_y,priority_3_y
C1,500,,1000,1,01.0 CC
C1,3000,,5000,1,02.0 PL
C1,100,,1000,0,01.0 CC
C2,10,,100,1,02.0 PL
`)
	plan := runPasses(tbl, utilisationPasses())
	require.Contains(t, plan.Executed(), "cc_utilisation_y")

	for r := 0; r < 3; r++ {
		assert.Equal(t, 1000.0, tbl.Float(P(TotalCCLim, Later), r))
		assert.Equal(t, 500.0, tbl.Float(P(TotalCCActive, Later), r))
		assert.InDelta(t, 0.5, tbl.Float(P(OverallCCUtil, Later), r), 1e-9)
		assert.InDelta(t, 3500.0/6000.0, tbl.Float(P(OverallUtil, Later), r), 1e-9)
	}

	assert.Equal(t, 0.0, tbl.Float(P(OverallCCUtil, Later), 3))
	assert.True(t, math.IsNaN(tbl.Float(P(TotalCCLim, Later), 3)))
	assert.InDelta(t, 0.1, tbl.Float(P(OverallUtil, Later), 3), 1e-9)
}

func TestCCUtilisation_CustomPriorityCode(t *testing.T) {
	tbl := readCSV(t, `customer_no,current_balance_y,high_balance_y,credit_limit_y,Activity_Flag_y,priority_3_y
C1,500,,1000,1,01.0 CC
C1,300,,1000,1,CARD
`)
	opts := DefaultOptions()
	opts.CCPriorityCode = "CARD"
	NewPlan(tbl.Names(), utilisationPasses()).Run(tbl, opts)

	assert.InDelta(t, 0.3, tbl.Float(P(OverallCCUtil, Later), 0), 1e-9)
}
