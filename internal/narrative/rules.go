package narrative

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/credit-delta/internal/feature"
)

// Verdict classifies a change as harmful or helpful to the customer's profile.
type Verdict string

const (
	Bad  Verdict = "Bad"
	Good Verdict = "Good"
)

// Rule is one pure predicate/message pair. Eval returns zero or more message
// bodies for the group; it never mutates the group. A rule whose Requires
// columns are absent from the engineered table is not evaluated.
type Rule struct {
	Name     string
	Verdict  Verdict
	Requires []string
	Eval     func(g *Group) []string
}

var (
	statusY   = feature.P(feature.LatestStatus, feature.Later)
	flagX     = feature.P(feature.ActivityFlag, feature.Earlier)
	flagY     = feature.P(feature.ActivityFlag, feature.Later)
	loanTypeY = feature.P(feature.LoanType, feature.Later)
	utilY     = feature.P(feature.Utilisation, feature.Later)
	overallY  = feature.P(feature.OverallUtil, feature.Later)
	overallCC = feature.P(feature.OverallCCUtil, feature.Later)
	symX      = feature.P(feature.AccountTypeSymbol, feature.Earlier)
	symY      = feature.P(feature.AccountTypeSymbol, feature.Later)
	l2mX      = feature.WindowColumn(2, feature.Earlier)
	l3mX      = feature.WindowColumn(3, feature.Earlier)
	l2mY      = feature.WindowColumn(2, feature.Later)
	accountsX = feature.P(feature.TotalAccounts, feature.Earlier)
	accountsY = feature.P(feature.TotalAccounts, feature.Later)
)

// Rules returns the fixed, ordered rule list: every Bad rule, then every
// Good rule.
func Rules() []Rule {
	return []Rule{
		// Bad.
		scoreRule("score_decreased", Bad),
		accountRule("currently_delinquent", Bad,
			[]string{statusY, flagY},
			func(g *Group, r int) bool { return g.num(statusY, r) > 0 && g.flag(feature.Later, r) == 1 },
			delinquentItem,
			"User is delinquent on accounts: %s."),
		accountRule("freshly_delinquent", Bad,
			[]string{flagY, l2mX, l3mX, l2mY},
			func(g *Group, r int) bool {
				return g.effectiveDPD(r) > 0 && g.flag(feature.Later, r) == 1 &&
					g.num(l2mX, r) <= 0 && g.num(l3mX, r) <= 0 && g.num(l2mY, r) > 0
			},
			delinquentItem,
			"User has become freshly delinquent on accounts: %s."),
		{
			Name:     "dormant",
			Verdict:  Bad,
			Requires: []string{utilY},
			Eval: func(g *Group) []string {
				if g.max(utilY) <= 0 {
					return []string{"User has become dormant and has zero overall credit utilization."}
				}
				return nil
			},
		},
		utilisationChangeRule("utilisation_increased", Bad),
		accountRule("account_utilisation_increased", Bad,
			[]string{feature.UtilPctDiff, flagY},
			func(g *Group, r int) bool {
				return g.num(feature.UtilPctDiff, r) > 0.5 && g.flag(feature.Later, r) == 1
			},
			func(g *Group, r int) string {
				return fmt.Sprintf("%s (%.0f%%)", g.text(feature.CreditorName, r), g.num(feature.UtilPctDiff, r)*100)
			},
			"User has increased utilisation on following accounts: %s."),
		utilisationLevelRule("utilisation_high", Bad),
		accountRule("account_utilisation_high", Bad,
			[]string{utilY, flagY},
			func(g *Group, r int) bool { return g.num(utilY, r) >= 0.3 && g.flag(feature.Later, r) == 1 },
			utilisationItem,
			"User has high utilisation (>30%%) in following accounts: %s."),
		accountRule("new_accounts_repeat_type", Bad,
			[]string{feature.NewAccountFlag, feature.Rank},
			func(g *Group, r int) bool {
				return g.num(feature.NewAccountFlag, r) == 1 && g.num(feature.Rank, r) != 1
			},
			loanTypeItem,
			"User has opened new following accounts: %s."),
		accountRule("account_type_changed", Bad,
			[]string{symX, symY, flagX, flagY},
			func(g *Group, r int) bool {
				return g.text(symY, r) != g.text(symX, r) &&
					g.flag(feature.Later, r) == 1 && g.flag(feature.Earlier, r) == 1
			},
			func(g *Group, r int) string {
				return fmt.Sprintf("%s (from %s to %s)", g.text(feature.CreditorName, r), g.text(symX, r), g.text(symY, r))
			},
			"User's following accounts were reported wrongly: %s."),
		{
			Name:    "new_enquiries",
			Verdict: Bad,
			Eval: func(g *Group) []string {
				if len(g.Enquiries) == 0 {
					return nil
				}
				items := make([]string, len(g.Enquiries))
				for i, e := range g.Enquiries {
					items[i] = fmt.Sprintf("%s (%s)", orNA(e.SubscriberName), orNA(e.LoanType))
				}
				return []string{fmt.Sprintf("User has made new inquiries with the following lenders: %s.", strings.Join(items, ", "))}
			},
		},

		// Good.
		scoreRule("score_increased", Good),
		accountRule("delinquency_reduced", Good,
			[]string{feature.LatestStatusDiff, flagX, l2mX},
			func(g *Group, r int) bool {
				return g.num(feature.LatestStatusDiff, r) < -1 && g.flag(feature.Earlier, r) == 1 && g.num(l2mX, r) > 0
			},
			func(g *Group, r int) string {
				return fmt.Sprintf("%s (by %s days)", g.text(feature.CreditorName, r),
					formatNum(math.Abs(g.num(feature.LatestStatusDiff, r))))
			},
			"User's delinquency has reduced in the following accounts: %s."),
		accountRule("no_longer_delinquent", Good,
			[]string{feature.LatestStatusDiff, statusY, flagX, l2mX, l3mX},
			func(g *Group, r int) bool {
				return g.num(feature.LatestStatusDiff, r) < -1 && g.num(statusY, r) == 0 &&
					g.num(l2mX, r) > 0 && g.num(l3mX, r) > 0 && g.flag(feature.Earlier, r) == 1
			},
			loanTypeItem,
			"User is no more delinquent on the following accounts: %s."),
		utilisationChangeRule("utilisation_decreased", Good),
		utilisationLevelRule("utilisation_healthy", Good),
		accountRule("account_utilisation_low", Good,
			[]string{utilY, flagY},
			func(g *Group, r int) bool { return g.num(utilY, r) < 0.3 && g.flag(feature.Later, r) == 1 },
			utilisationItem,
			"User has utilisation less than 30%% in the following accounts: %s."),
		accountRule("account_utilisation_reduced", Good,
			[]string{feature.UtilPctDiff, flagX},
			func(g *Group, r int) bool {
				return g.num(feature.UtilPctDiff, r) < -0.1 && g.flag(feature.Earlier, r) == 1
			},
			func(g *Group, r int) string {
				return fmt.Sprintf("%s (%.0f%%)", g.text(feature.CreditorName, r), math.Abs(g.num(feature.UtilPctDiff, r)*100))
			},
			"User has reduced their utilisation in the following accounts: %s."),
		accountRule("accounts_removed", Good,
			[]string{feature.MergeIndicator},
			func(g *Group, r int) bool { return g.Status(r) == StatusRemovedFromReport },
			func(g *Group, r int) string {
				return fmt.Sprintf("%s (%s)", g.text(feature.CreditorName, r), g.text(feature.CoalLoanType, r))
			},
			"User's following accounts were removed from their report: %s."),
		accountRule("accounts_closed", Good,
			[]string{flagX, flagY},
			func(g *Group, r int) bool { return g.flag(feature.Later, r) == 0 && g.flag(feature.Earlier, r) == 1 },
			loanTypeItem,
			"User has closed the following accounts: %s."),
		accountRule("new_accounts_first_of_type", Good,
			[]string{feature.NewAccountFlag, feature.Rank},
			func(g *Group, r int) bool {
				return g.num(feature.NewAccountFlag, r) == 1 && g.num(feature.Rank, r) == 1
			},
			loanTypeItem,
			"User has opened new following accounts: %s."),
		accountRule("new_accounts_after_dormancy", Good,
			[]string{feature.NewAccountFlag, accountsX, accountsY},
			func(g *Group, r int) bool {
				return g.num(feature.NewAccountFlag, r) == 1 && g.num(accountsY, r) >= 1 && g.num(accountsX, r) == 0
			},
			loanTypeItem,
			"User has opened new following accounts after a period of dormancy: %s."),
	}
}

// accountRule filters rows with match and, when any row matches, renders a
// single sentence joining every matching account with commas.
func accountRule(name string, v Verdict, requires []string, match func(*Group, int) bool, item func(*Group, int) string, tmpl string) Rule {
	return Rule{
		Name:     name,
		Verdict:  v,
		Requires: requires,
		Eval: func(g *Group) []string {
			var items []string
			for r := 0; r < g.Len(); r++ {
				if match(g, r) {
					items = append(items, item(g, r))
				}
			}
			if len(items) == 0 {
				return nil
			}
			return []string{fmt.Sprintf(tmpl, strings.Join(items, ", "))}
		},
	}
}

// scoreRule reports a customer-level score drop (Bad) or rise (Good). The
// diff is broadcast, so the first row carries the customer's value.
func scoreRule(name string, v Verdict) Rule {
	return Rule{
		Name:     name,
		Verdict:  v,
		Requires: []string{feature.RiskScoreDiff},
		Eval: func(g *Group) []string {
			top := g.max(feature.RiskScoreDiff)
			if math.IsNaN(top) {
				return nil
			}
			first := g.num(feature.RiskScoreDiff, 0)
			switch {
			case v == Bad && top < 0:
				return []string{fmt.Sprintf("User's score has reduced between 2 months by %s points.", formatNum(-first))}
			case v == Good && top > 0:
				return []string{fmt.Sprintf("User's score has increased between 2 months by %s points.", formatNum(first))}
			}
			return nil
		},
	}
}

// utilisationChangeRule reports the relative change in overall and
// credit-card utilisation, in percentage points.
func utilisationChangeRule(name string, v Verdict) Rule {
	return Rule{
		Name:     name,
		Verdict:  v,
		Requires: []string{feature.OverallPctDiff},
		Eval: func(g *Group) []string {
			overall := g.max(feature.OverallPctDiff) * 100
			cc := 0.0
			if g.Has(feature.OverallCCPctDiff) {
				cc = g.max(feature.OverallCCPctDiff) * 100
			}

			var out []string
			if v == Bad {
				if overall > 0 {
					out = append(out, fmt.Sprintf("User's overall utilisation has increased by %.2f percentage points.", overall))
				}
				if cc > 0 {
					out = append(out, fmt.Sprintf("User's cc utilisation has increased by %.2f percentage points.", cc))
				}
				return out
			}
			if overall < 0 {
				out = append(out, fmt.Sprintf("User's overall utilisation has decreased by %.2f percentage points.", math.Abs(overall)))
			}
			if cc < 0 {
				out = append(out, fmt.Sprintf("User's cc utilisation has decreased by %.2f percentage points.", math.Abs(cc)))
			}
			return out
		},
	}
}

// utilisationLevelRule compares overall and credit-card utilisation in the
// later period against 30%.
func utilisationLevelRule(name string, v Verdict) Rule {
	return Rule{
		Name:     name,
		Verdict:  v,
		Requires: []string{overallY, overallCC},
		Eval: func(g *Group) []string {
			all, cc := g.max(overallY)*100, g.max(overallCC)*100

			var out []string
			if v == Bad {
				if all >= 30 {
					out = append(out, fmt.Sprintf("User's overall utilisation is high at %.2f%%.", all))
				}
				if cc >= 30 {
					out = append(out, fmt.Sprintf("User's cc utilisation is high at %.2f%%.", cc))
				}
				return out
			}
			if all < 30 {
				out = append(out, fmt.Sprintf("User's overall utilisation is healthy at %.2f%%.", all))
			}
			if cc < 30 {
				out = append(out, fmt.Sprintf("User's cc utilisation is healthy at %.2f%%.", cc))
			}
			return out
		},
	}
}

func delinquentItem(g *Group, r int) string {
	return fmt.Sprintf("%s %s (%s days)", g.text(feature.CreditorName, r), g.text(loanTypeY, r), formatNum(g.effectiveDPD(r)))
}

func utilisationItem(g *Group, r int) string {
	return fmt.Sprintf("%s (%.0f%%)", g.text(feature.CreditorName, r), g.num(utilY, r)*100)
}

func loanTypeItem(g *Group, r int) string {
	return fmt.Sprintf("%s (%s)", g.text(feature.CreditorName, r), g.text(loanTypeY, r))
}
