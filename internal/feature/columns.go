package feature

import (
	"fmt"
	"math"
	"time"
)

// Period suffixes of the paired snapshot.
const (
	Earlier = "x"
	Later   = "y"
)

// Input and derived column names shared with the narrative stage.
const (
	CustomerNo       = "customer_no"
	DateOpened       = "date_opened"
	MergeIndicator   = "_merge"
	CreditorName     = "creditor_name"
	AccNo            = "acc_no"
	LenderType       = "lender_type"
	LatestStatusDiff = "latest_payment_dpd_status_diff"
	MaxDelinq2M      = "max_delinquency_latest_2_months_y"
	MaxDelinqFound   = "max_delinquency_detected"
	MinDelinqFound   = "min_delinquency_detected"
	UtilDiff         = "utilisation_diff"
	UtilPctDiff      = "utilisation_percent_diff"
	OverallDiff      = "overall_utilisation_diff"
	OverallPctDiff   = "overall_utilisation_percent_diff"
	OverallCCDiff    = "overall_cc_utilisation_diff"
	OverallCCPctDiff = "overall_cc_utilisation_percent_diff"
	CoalPriority     = "coalesced_priority"
	CoalLoanType     = "coalesced_loan_type"
	CoalOpenDate     = "coalesced_open_date"
	RiskScoreDiff    = "risk_score_diff"
	Rank             = "rn"
	NewAccountFlag   = "new_account_flag"
	EffectiveDPD     = "temp"
)

// Per-period base names; combine with P.
const (
	CurrentBalance    = "current_balance"
	HighBalance       = "high_balance"
	CreditLimit       = "credit_limit"
	ActivityFlag      = "Activity_Flag"
	Priority          = "priority_3"
	LoanType          = "loan_type"
	AccountNumber     = "account_number"
	PayStatusHistory  = "pay_status_history"
	LatestStatus      = "latest_payment_dpd_status"
	LatestStatus2     = "latest_payment_dpd_status2"
	LatestStatus3     = "latest_payment_dpd_status3"
	RiskScore         = "risk_score"
	AccountTypeSymbol = "account_type_symbol"
	SecuredUnsecured  = "secured_unsecured"
	DiffSinceOpen     = "diff_sin_open"
	StringLength      = "string_length"
	LimDisbursed      = "lim_disbursed"
	ActiveBalance     = "active_balance"
	Utilisation       = "utilisation"
	TotalLim          = "total_lim_disbursed"
	TotalActive       = "total_active_balance"
	TotalCCLim        = "total_cc_lim_disbursed"
	TotalCCActive     = "total_cc_active_balance"
	OverallUtil       = "overall_utilisation"
	OverallCCUtil     = "overall_cc_utilisation"
	TotalAccounts     = "total_active_accounts"
	TotalCCAccounts   = "total_active_cc_accounts"
)

// Windows are the rolling delinquency window sizes in months, longest first.
var Windows = []int{36, 24, 18, 12, 6, 3, 2, 1}

// detectedWindows feed max/min_delinquency_detected. The two-month window is
// not one of them.
var detectedWindows = []int{36, 24, 18, 12, 6, 3, 1}

// P joins a base column name with a period suffix.
func P(base, period string) string { return base + "_" + period }

// HistoryColumn names the i-th (1-based) monthly delinquency column of a period.
func HistoryColumn(i int, period string) string {
	return fmt.Sprintf("pay_hist_%d_%s", i, period)
}

// WindowPrefix names a window's derived columns without the period suffix.
func WindowPrefix(months int) string {
	if months == 1 {
		return "max_dpd_cm"
	}
	return fmt.Sprintf("max_dpd_l%dm", months)
}

// WindowColumn names the rolling maximum of a window for one period.
func WindowColumn(months int, period string) string {
	return P(WindowPrefix(months), period)
}

// WindowDiffColumn names the later-minus-earlier difference of a window.
func WindowDiffColumn(months int) string {
	return P(WindowPrefix(months), "diff")
}

// safeDiv divides a by b, yielding 0 wherever the quotient is undefined or infinite.
func safeDiv(a, b float64) float64 {
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// nanMax returns the largest non-NaN value, or NaN when there is none.
func nanMax(vals ...float64) float64 {
	out := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}

// nanMin returns the smallest non-NaN value, or NaN when there is none.
func nanMin(vals ...float64) float64 {
	out := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v < out {
			out = v
		}
	}
	return out
}

// nanSum adds the non-NaN values; an all-NaN input sums to 0.
func nanSum(vals ...float64) float64 {
	var s float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			s += v
		}
	}
	return s
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// parseDate tries each layout in order.
func parseDate(s string, layouts []string) (time.Time, bool) {
	for _, l := range layouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
