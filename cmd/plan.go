package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/narrative"
	"github.com/sells-group/credit-delta/internal/tableio"
)

var planInput string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which feature passes would run for an input",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("plan"); err != nil {
			return err
		}
		opts, err := inputOptions(cfg)
		if err != nil {
			return err
		}
		t, err := tableio.ReadTable(cmd.Context(), planInput, opts)
		if err != nil {
			return eris.Wrap(err, "plan: read input")
		}
		plan := feature.PlanFor(t.Names())
		if err := printPlan(cmd.OutOrStdout(), plan); err != nil {
			return err
		}
		return printRuleCoverage(cmd.OutOrStdout(), t.Names(), plan, narrative.Rules())
	},
}

// printPlan writes one line per pass: its stage, name, and either "run" or
// the columns that keep it from running.
func printPlan(w io.Writer, plan feature.Plan) error {
	for _, s := range plan.Steps {
		status := "run"
		if s.Skipped {
			status = "skip (missing " + strings.Join(s.Missing, ", ") + ")"
		}
		if _, err := fmt.Fprintf(w, "%-12s %-34s %s\n", s.Pass.Stage, s.Pass.Name, status); err != nil {
			return eris.Wrap(err, "plan: write")
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passes run, %d skipped\n", len(plan.Executed()), len(plan.Skipped()))
	return eris.Wrap(err, "plan: write")
}

// printRuleCoverage reports which narrative rules will have their inputs
// once the plan has run, listing the missing columns of the rest.
func printRuleCoverage(w io.Writer, columns []string, plan feature.Plan, rules []narrative.Rule) error {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}

	var blocked []string
	for _, r := range rules {
		var missing []string
		for _, c := range r.Requires {
			if !have[c] && !plan.Produces(c) {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			blocked = append(blocked, fmt.Sprintf("  %-30s missing %s\n", r.Name, strings.Join(missing, ", ")))
		}
	}

	if _, err := fmt.Fprintf(w, "%d of %d narrative rules applicable\n", len(rules)-len(blocked), len(rules)); err != nil {
		return eris.Wrap(err, "plan: write")
	}
	for _, line := range blocked {
		if _, err := io.WriteString(w, line); err != nil {
			return eris.Wrap(err, "plan: write")
		}
	}
	return nil
}

func init() {
	planCmd.Flags().StringVar(&planInput, "input", "", "paired table (.csv or .xlsx, required)")
	_ = planCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(planCmd)
}
