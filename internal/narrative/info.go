package narrative

import (
	"fmt"
	"strings"

	"github.com/sells-group/credit-delta/internal/feature"
)

// lenderBuckets are the lender types shown in the credit mix, in print order.
var lenderBuckets = []struct{ label, value string }{
	{"Public", "Public sector"},
	{"Private", "Private sector"},
	{"NBFC", "NBFC"},
	{"Corporate", "Corporate bank"},
	{"Foreign", "Foreign bank"},
}

// InfoReport renders the factual profile of one customer.
func InfoReport(g *Group) string {
	var b strings.Builder

	fmt.Fprintf(&b, "--- Credit Profile Report for Customer: %s ---\n", g.CustomerNo)
	writeKeyMetrics(&b, g)
	writeCreditMix(&b, g)
	writeAccounts(&b, g)
	writeEnquiries(&b, g)

	return b.String()
}

func writeKeyMetrics(b *strings.Builder, g *Group) {
	b.WriteString("\n## Key Metric Summary\n")

	fmt.Fprintf(b, "-  Risk Score : %s (was %s)\n",
		g.first(feature.P(feature.RiskScore, feature.Later)),
		g.first(feature.P(feature.RiskScore, feature.Earlier)))
	fmt.Fprintf(b, "-  Overall Utilization : %s (was %s)\n",
		percent(g.firstOr(feature.P(feature.OverallUtil, feature.Later), 0)),
		percent(g.firstOr(feature.P(feature.OverallUtil, feature.Earlier), 0)))

	ccY := g.firstOr(feature.P(feature.TotalCCAccounts, feature.Later), 0)
	ccX := g.firstOr(feature.P(feature.TotalCCAccounts, feature.Earlier), 0)
	if ccY > 0 || ccX > 0 {
		fmt.Fprintf(b, "-  Credit Card Utilization : %s (was %s)\n",
			percent(g.firstOr(feature.P(feature.OverallCCUtil, feature.Later), 0)),
			percent(g.firstOr(feature.P(feature.OverallCCUtil, feature.Earlier), 0)))
	}

	fmt.Fprintf(b, "-  Total Active Accounts : %s (was %s)\n",
		g.first(feature.P(feature.TotalAccounts, feature.Later)),
		g.first(feature.P(feature.TotalAccounts, feature.Earlier)))
}

// writeCreditMix counts products and lenders over accounts active in the
// later period.
func writeCreditMix(b *strings.Builder, g *Group) {
	b.WriteString("\n## Current Credit Mix\n")

	securedCol := feature.P(feature.SecuredUnsecured, feature.Later)
	if g.Has(securedCol) {
		accountCol := feature.P(feature.AccountNumber, feature.Later)
		total := 0
		for r := 0; r < g.Len(); r++ {
			if g.Has(accountCol) && g.text(accountCol, r) != feature.NAValue {
				total++
			}
		}
		active := g.sum(feature.P(feature.ActivityFlag, feature.Later))
		counts := g.activeCounts(securedCol)

		fmt.Fprintf(b, "-  Total Accounts : %d (%s active)\n", total, formatNum(active))
		fmt.Fprintf(b, "-  Active Secured Products : %d\n", counts["1. Secured"])
		fmt.Fprintf(b, "-  Active Unsecured Products : %d\n", counts["2. Unsecured"])
	}

	if g.Has(feature.LenderType) {
		counts := g.activeCounts(feature.LenderType)
		parts := make([]string, len(lenderBuckets))
		for i, lb := range lenderBuckets {
			parts[i] = fmt.Sprintf("%s(%d)", lb.label, counts[lb.value])
		}
		fmt.Fprintf(b, "-  Active Lender Distribution : %s\n", strings.Join(parts, ", "))
	}
}

// activeCounts tallies col over rows active in the later period.
func (g *Group) activeCounts(col string) map[string]int {
	counts := make(map[string]int)
	for r := 0; r < g.Len(); r++ {
		if g.flag(feature.Later, r) == 1 {
			counts[g.text(col, r)]++
		}
	}
	return counts
}

func writeAccounts(b *strings.Builder, g *Group) {
	b.WriteString("\n## Account Details Breakdown\n")

	symX := feature.P(feature.AccountTypeSymbol, feature.Earlier)
	symY := feature.P(feature.AccountTypeSymbol, feature.Later)
	utilX := feature.P(feature.Utilisation, feature.Earlier)
	utilY := feature.P(feature.Utilisation, feature.Later)

	for r := 0; r < g.Len(); r++ {
		loanType := g.text(feature.CoalLoanType, r)

		fmt.Fprintf(b, "\n-  Account : %s - %s (%s)\n",
			g.text(feature.CreditorName, r), loanType, g.text(feature.AccNo, r))
		fmt.Fprintf(b, "  -  Status : %s\n", g.Status(r))
		fmt.Fprintf(b, "  -  DPD : %s days (was %s days)\n",
			g.text(feature.P(feature.LatestStatus, feature.Later), r),
			g.text(feature.P(feature.LatestStatus, feature.Earlier), r))

		ux, uy := zeroIfAbsent(g, utilX, r), zeroIfAbsent(g, utilY, r)
		if strings.Contains(strings.ToUpper(loanType), "CC") || ux > 0 || uy > 0 {
			fmt.Fprintf(b, "  -  Utilization : %s (was %s)\n", percent(uy), percent(ux))
		}

		if g.Has(symX) || g.Has(symY) {
			sx, sy := g.text(symX, r), g.text(symY, r)
			if sx != sy {
				fmt.Fprintf(b, "  -  Info Change : Account type is now '%s' (was '%s')\n", sy, sx)
			}
		}
	}
}

func writeEnquiries(b *strings.Builder, g *Group) {
	if len(g.Enquiries) == 0 {
		return
	}
	b.WriteString("\n## Recent Credit Enquiries\n")
	for _, e := range g.Enquiries {
		fmt.Fprintf(b, "-  Lender : %s,  Type : %s,  Date : %s\n",
			orNA(e.SubscriberName), orNA(e.LoanType), orNA(e.InquiryDate))
	}
}

func zeroIfAbsent(g *Group, col string, r int) float64 {
	if !g.Has(col) {
		return 0
	}
	return g.num(col, r)
}

func orNA(s string) string {
	if s == "" {
		return feature.NAValue
	}
	return s
}
