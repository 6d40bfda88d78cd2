package narrative

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/table"
	"github.com/sells-group/credit-delta/internal/tableio"
)

func readCSV(t *testing.T, s string) *table.Table {
	t.Helper()
	tbl, err := tableio.ReadCSV(context.Background(), strings.NewReader(s), tableio.Options{})
	require.NoError(t, err)
	return tbl
}

// firstGroup views the first customer of an inline fixture.
func firstGroup(t *testing.T, s string, enquiries ...model.Enquiry) *Group {
	t.Helper()
	tbl := readCSV(t, s)
	groups := tbl.GroupBy("customer_no")
	require.NotEmpty(t, groups)
	return NewGroup(tbl, groups[0].Key, groups[0].Rows, enquiries)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		want    string
	}{
		{
			name: "currently delinquent",
			fixture: `customer_no,creditor_name,loan_type_y,latest_payment_dpd_status_y,Activity_Flag_y,latest_payment_dpd_status_x,Activity_Flag_x,latest_payment_dpd_status_diff,max_dpd_l2m_x
C1,HDFC,Credit Card,45,1,0,1,45,0
`,
			want: "Bad:- User is delinquent on accounts: HDFC Credit Card (45 days).\n",
		},
		{
			name: "removed from report",
			fixture: `customer_no,creditor_name,_merge,coalesced_loan_type,Activity_Flag_x,Activity_Flag_y
C1,HDFC,left_only,Personal Loan,1,
`,
			want: "Good:- User's following accounts were removed from their report: HDFC (Personal Loan).\n",
		},
		{
			name: "dormant",
			fixture: `customer_no,creditor_name,utilisation_y
C1,A,0
C1,B,0
`,
			want: "Bad:- User has become dormant and has zero overall credit utilization.\n",
		},
		{
			name: "bad rules precede good rules",
			fixture: `customer_no,creditor_name,loan_type_y,risk_score_diff,utilisation_y,Activity_Flag_y
C1,HDFC,Credit Card,-15,0.45,1
C1,SBI,Personal Loan,-15,0.1,1
`,
			want: "Bad:- User's score has reduced between 2 months by 15 points.\n" +
				"Bad:- User has high utilisation (>30%) in following accounts: HDFC (45%).\n" +
				"Good:- User has utilisation less than 30% in the following accounts: SBI (10%).\n",
		},
		{
			name: "matching accounts join into one sentence",
			fixture: `customer_no,creditor_name,loan_type_y,Activity_Flag_x,Activity_Flag_y
C1,HDFC,Credit Card,1,0
C1,SBI,Personal Loan,1,0
C1,AXIS,Auto Loan,1,1
`,
			want: "Good:- User has closed the following accounts: HDFC (Credit Card), SBI (Personal Loan).\n",
		},
		{
			name: "utilisation levels and change",
			fixture: `customer_no,overall_utilisation_y,overall_cc_utilisation_y,overall_utilisation_percent_diff
C1,0.35,0.1,1.4
`,
			want: "Bad:- User's overall utilisation has increased by 140.00 percentage points.\n" +
				"Bad:- User's overall utilisation is high at 35.00%.\n" +
				"Good:- User's cc utilisation is healthy at 10.00%.\n",
		},
		{
			name: "score increase",
			fixture: `customer_no,risk_score_diff
C1,12
`,
			want: "Good:- User's score has increased between 2 months by 12 points.\n",
		},
		{
			name: "delinquency reduced",
			fixture: `customer_no,creditor_name,loan_type_y,latest_payment_dpd_status_y,latest_payment_dpd_status_diff,Activity_Flag_x,max_dpd_l2m_x,max_dpd_l3m_x
C1,HDFC,Credit Card,0,-60,1,60,90
`,
			want: "Good:- User's delinquency has reduced in the following accounts: HDFC (by 60 days).\n" +
				"Good:- User is no more delinquent on the following accounts: HDFC (Credit Card).\n",
		},
		{
			name: "new accounts split by rank",
			fixture: `customer_no,creditor_name,loan_type_y,new_account_flag,rn,total_active_accounts_x,total_active_accounts_y
C1,HDFC,Credit Card,1,2,0,2
C1,SBI,Gold Loan,1,1,0,2
`,
			want: "Bad:- User has opened new following accounts: HDFC (Credit Card).\n" +
				"Good:- User has opened new following accounts: SBI (Gold Loan).\n" +
				"Good:- User has opened new following accounts after a period of dormancy: HDFC (Credit Card), SBI (Gold Loan).\n",
		},
		{
			name: "account type changed",
			fixture: `customer_no,creditor_name,account_type_symbol_x,account_type_symbol_y,Activity_Flag_x,Activity_Flag_y
C1,HDFC,R,I,1,1
C1,SBI,R,R,1,1
`,
			want: "Bad:- User's following accounts were reported wrongly: HDFC (from R to I).\n",
		},
		{
			name: "freshly delinquent",
			fixture: `customer_no,creditor_name,loan_type_y,Activity_Flag_y,max_dpd_l2m_x,max_dpd_l3m_x,max_dpd_l2m_y,temp
C1,HDFC,Credit Card,1,0,0,45,45
C1,SBI,Personal Loan,1,0,30,30,30
C1,AXIS,Auto Loan,0,0,0,60,60
`,
			want: "Bad:- User has become freshly delinquent on accounts: HDFC Credit Card (45 days).\n",
		},
		{
			name: "earlier three-month delinquency is not fresh",
			fixture: `customer_no,creditor_name,loan_type_y,Activity_Flag_y,max_dpd_l2m_x,max_dpd_l3m_x,max_dpd_l2m_y,temp
C1,SBI,Personal Loan,1,0,30,30,30
`,
			want: "",
		},
		{
			name: "account utilisation increased",
			fixture: `customer_no,creditor_name,utilisation_percent_diff,Activity_Flag_y
C1,HDFC,5,1
C1,SBI,0.5,1
C1,AXIS,2,0
`,
			want: "Bad:- User has increased utilisation on following accounts: HDFC (500%).\n",
		},
		{
			name: "account utilisation reduced",
			fixture: `customer_no,creditor_name,utilisation_percent_diff,Activity_Flag_x
C1,SBI,-1,1
C1,AXIS,-0.1,1
C1,HDFC,-0.8,0
`,
			want: "Good:- User has reduced their utilisation in the following accounts: SBI (100%).\n",
		},
		{
			name: "overall and cc utilisation decreased",
			fixture: `customer_no,overall_utilisation_percent_diff,overall_cc_utilisation_percent_diff
C1,-0.25,-0.5
`,
			want: "Good:- User's overall utilisation has decreased by 25.00 percentage points.\n" +
				"Good:- User's cc utilisation has decreased by 50.00 percentage points.\n",
		},
		{
			name: "cc utilisation increased while overall decreased",
			fixture: `customer_no,overall_utilisation_percent_diff,overall_cc_utilisation_percent_diff
C1,-0.2,0.4
`,
			want: "Bad:- User's cc utilisation has increased by 40.00 percentage points.\n" +
				"Good:- User's overall utilisation has decreased by 20.00 percentage points.\n",
		},
		{
			name: "unchanged utilisation reports nothing",
			fixture: `customer_no,overall_utilisation_percent_diff,overall_cc_utilisation_percent_diff
C1,0,0
`,
			want: "",
		},
		{
			name:    "no applicable columns",
			fixture: "customer_no\nC1\n",
			want:    "",
		},
	}

	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Update(firstGroup(t, tt.fixture)))
		})
	}
}

func TestUpdate_DelinquentIsNotReportedAsImproved(t *testing.T) {
	g := firstGroup(t, `customer_no,creditor_name,loan_type_y,latest_payment_dpd_status_y,Activity_Flag_y,latest_payment_dpd_status_x,Activity_Flag_x,latest_payment_dpd_status_diff,max_dpd_l2m_x,max_dpd_l3m_x
C1,HDFC,Credit Card,45,1,0,1,45,0,0
`)
	for _, f := range NewEngine().Evaluate(g) {
		assert.NotEqual(t, Good, f.Verdict, f.Rule)
	}
}

func TestUpdate_Enquiries(t *testing.T) {
	g := firstGroup(t, "customer_no\nC1\n",
		model.Enquiry{CustomerNo: "C1", SubscriberName: "Bajaj", LoanType: "Personal Loan", InquiryDate: "2024-01-01"},
		model.Enquiry{CustomerNo: "C1"},
	)

	assert.Equal(t,
		"Bad:- User has made new inquiries with the following lenders: Bajaj (Personal Loan), NA (NA).\n",
		NewEngine().Update(g))
}

func TestUpdate_UsesEffectiveDelinquency(t *testing.T) {
	g := firstGroup(t, `customer_no,creditor_name,loan_type_y,latest_payment_dpd_status_y,Activity_Flag_y,temp
C1,HDFC,Credit Card,30,1,30
C1,SBI,Personal Loan,0,1,60
`)
	assert.Equal(t,
		"Bad:- User is delinquent on accounts: HDFC Credit Card (30 days).\n",
		NewEngine().Update(g))
}

func TestEvaluate_FindingsCarryRuleNames(t *testing.T) {
	g := firstGroup(t, "customer_no,risk_score_diff\nC1,-5\n")
	findings := NewEngine().Evaluate(g)

	require.Len(t, findings, 1)
	assert.Equal(t, "score_decreased", findings[0].Rule)
	assert.Equal(t, Bad, findings[0].Verdict)
	assert.Equal(t, "Bad:- User's score has reduced between 2 months by 5 points.", findings[0].Line())
}

func TestRules_BadBeforeGood(t *testing.T) {
	rules := Rules()
	require.Len(t, rules, 22)

	seenGood := false
	names := make(map[string]bool)
	for _, r := range rules {
		if r.Verdict == Good {
			seenGood = true
		} else {
			assert.False(t, seenGood, "bad rule %s after a good rule", r.Name)
		}
		assert.False(t, names[r.Name], "duplicate rule %s", r.Name)
		names[r.Name] = true
	}
}

func TestNewEngineWithRules(t *testing.T) {
	engine := NewEngineWithRules([]Rule{{
		Name:    "always",
		Verdict: Good,
		Eval:    func(g *Group) []string { return []string{"hello " + g.CustomerNo} },
	}, {
		Name:     "needs_column",
		Verdict:  Bad,
		Requires: []string{"absent"},
		Eval:     func(*Group) []string { panic("must not run") },
	}})

	g := firstGroup(t, "customer_no\nC9\n")
	assert.Equal(t, "Good:- hello C9\n", engine.Update(g))
	assert.Len(t, engine.Rules(), 2)
}

func TestGroup_Status(t *testing.T) {
	g := firstGroup(t, `customer_no,_merge,new_account_flag,Activity_Flag_x,Activity_Flag_y
C1,left_only,1,1,0
C1,right_only,1,,1
C1,both,0,1,0
C1,both,0,1,1
`)
	tests := []struct {
		row  int
		want Status
		text string
	}{
		{0, StatusRemovedFromReport, "Removed from Report"},
		{1, StatusNew, "New Account"},
		{2, StatusClosedThisPeriod, "Closed this Period"},
		{3, StatusActive, "Active"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Status(tt.row))
			assert.Equal(t, tt.text, g.Status(tt.row).String())
		})
	}
}

func TestGroup_Text(t *testing.T) {
	g := firstGroup(t, "customer_no,creditor_name\nC1,\n")

	assert.Equal(t, "NA", g.text("creditor_name", 0))
	assert.Equal(t, "N/A", g.text("absent", 0))
	assert.Equal(t, "N/A", g.first("absent"))
}

const infoFixture = `customer_no,creditor_name,acc_no,coalesced_loan_type,_merge,account_number_y,risk_score_x,risk_score_y,overall_utilisation_x,overall_utilisation_y,overall_cc_utilisation_x,overall_cc_utilisation_y,total_active_cc_accounts_x,total_active_cc_accounts_y,total_active_accounts_x,total_active_accounts_y,secured_unsecured_y,lender_type,Activity_Flag_x,Activity_Flag_y,latest_payment_dpd_status_x,latest_payment_dpd_status_y,utilisation_x,utilisation_y,account_type_symbol_x,account_type_symbol_y
C1,HDFC,A1,Credit Card,both,N1,700,690,0.25,0.6,0.2,0.6,1,1,2,1,2. Unsecured,Private sector,1,1,0,30,0.2,0.6,R,R
C1,SBI,A2,Home Loan,left_only,,700,690,0.25,0.6,0.2,0.6,1,1,2,1,1. Secured,Public sector,1,0,0,,0,0,S,I
`

func TestInfoReport(t *testing.T) {
	g := firstGroup(t, infoFixture, model.Enquiry{CustomerNo: "C1", SubscriberName: "Bajaj", LoanType: "Personal Loan", InquiryDate: "2024-01-01"})
	got := InfoReport(g)

	for _, want := range []string{
		"--- Credit Profile Report for Customer: C1 ---\n",
		"\n## Key Metric Summary\n",
		"-  Risk Score : 690 (was 700)\n",
		"-  Overall Utilization : 60.00% (was 25.00%)\n",
		"-  Credit Card Utilization : 60.00% (was 20.00%)\n",
		"-  Total Active Accounts : 1 (was 2)\n",
		"\n## Current Credit Mix\n",
		"-  Total Accounts : 1 (1 active)\n",
		"-  Active Secured Products : 0\n",
		"-  Active Unsecured Products : 1\n",
		"-  Active Lender Distribution : Public(0), Private(1), NBFC(0), Corporate(0), Foreign(0)\n",
		"\n## Account Details Breakdown\n",
		"\n-  Account : HDFC - Credit Card (A1)\n",
		"  -  Status : Active\n",
		"  -  DPD : 30 days (was 0 days)\n",
		"  -  Utilization : 60.00% (was 20.00%)\n",
		"\n-  Account : SBI - Home Loan (A2)\n",
		"  -  Status : Removed from Report\n",
		"  -  DPD : NA days (was 0 days)\n",
		"  -  Info Change : Account type is now 'I' (was 'S')\n",
		"\n## Recent Credit Enquiries\n",
		"-  Lender : Bajaj,  Type : Personal Loan,  Date : 2024-01-01\n",
	} {
		assert.Contains(t, got, want)
	}

	assert.Equal(t, 1, strings.Count(got, "  -  Utilization :"), "accounts without utilisation omit the line")
}

func TestInfoReport_MissingColumns(t *testing.T) {
	g := firstGroup(t, "customer_no\nC1\n")
	got := InfoReport(g)

	assert.Contains(t, got, "-  Risk Score : N/A (was N/A)\n")
	assert.Contains(t, got, "-  Overall Utilization : 0.00% (was 0.00%)\n")
	assert.NotContains(t, got, "Credit Card Utilization")
	assert.NotContains(t, got, "Total Accounts :")
	assert.NotContains(t, got, "Recent Credit Enquiries")
	assert.Contains(t, got, "\n-  Account : N/A - N/A (N/A)\n")
}

func TestGenerate(t *testing.T) {
	tbl := readCSV(t, `customer_no,risk_score_diff
C2,-3
C1,4
C2,-3
,9
`)
	enquiries := []model.Enquiry{
		{CustomerNo: "C1", SubscriberName: "Bajaj", LoanType: "Personal Loan"},
		{CustomerNo: "C3", SubscriberName: "Other"},
	}

	pairs, err := Generate(context.Background(), tbl, enquiries, Options{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	assert.Equal(t, "C2", pairs[0].CustomerNo)
	assert.Equal(t, "Bad:- User's score has reduced between 2 months by 3 points.\n", pairs[0].CustomerCreditUpdate)
	assert.Contains(t, pairs[0].CustomerInfo, "Customer: C2")

	assert.Equal(t, "C1", pairs[1].CustomerNo)
	assert.Equal(t,
		"Bad:- User has made new inquiries with the following lenders: Bajaj (Personal Loan).\n"+
			"Good:- User's score has increased between 2 months by 4 points.\n",
		pairs[1].CustomerCreditUpdate)
	assert.Contains(t, pairs[1].CustomerInfo, "Lender : Bajaj")
}

func TestGenerate_Deterministic(t *testing.T) {
	tbl := readCSV(t, infoFixture)

	first, err := Generate(context.Background(), tbl, nil, Options{Concurrency: 4})
	require.NoError(t, err)
	second, err := Generate(context.Background(), tbl, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerate_MissingCustomerColumn(t *testing.T) {
	tbl := readCSV(t, "acc_no\nA1\n")
	_, err := Generate(context.Background(), tbl, nil, Options{})
	require.ErrorIs(t, err, ErrMissingCustomerColumn)
}

func TestGenerate_Cancelled(t *testing.T) {
	tbl := readCSV(t, "customer_no\nC1\nC2\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, tbl, nil, Options{Concurrency: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestIndexEnquiries(t *testing.T) {
	idx := IndexEnquiries([]model.Enquiry{
		{CustomerNo: "C1", SubscriberName: "a"},
		{CustomerNo: "C2", SubscriberName: "b"},
		{CustomerNo: "C1", SubscriberName: "c"},
	})

	require.Len(t, idx["C1"], 2)
	assert.Equal(t, "a", idx["C1"][0].SubscriberName)
	assert.Equal(t, "c", idx["C1"][1].SubscriberName)
	assert.Len(t, idx["C2"], 1)
}
