package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/config"
	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/narrative"
	"github.com/sells-group/credit-delta/internal/store"
	"github.com/sells-group/credit-delta/internal/tableio"
)

type narrateParams struct {
	Input     string
	Enquiries string
	Output    string
	Format    string
	Raw       bool
	Save      bool
}

var narrateFlags narrateParams

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Render profile reports and change findings per customer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("narrate"); err != nil {
			return err
		}
		if narrateFlags.Save {
			if err := cfg.Validate("save"); err != nil {
				return err
			}
		}
		_, _, err := runNarrate(cmd.Context(), cfg, narrateFlags)
		return err
	},
}

// runNarrate generates report pairs for the table at p.Input, writes them to
// p.Output, and, when p.Save is set, records them as a run. It returns the
// pairs and the run id (empty when not saved).
func runNarrate(ctx context.Context, c *config.Config, p narrateParams) ([]model.ReportPair, string, error) {
	format, err := tableio.ParseFormat(p.Format, p.Output, tableio.FormatJSONL)
	if err != nil {
		return nil, "", err
	}
	opts, err := inputOptions(c)
	if err != nil {
		return nil, "", err
	}

	t, err := tableio.ReadTable(ctx, p.Input, opts)
	if err != nil {
		return nil, "", eris.Wrap(err, "narrate: read input")
	}
	if p.Raw {
		t, err = feature.Engineer(t, featureOptions(c))
		if err != nil {
			return nil, "", eris.Wrap(err, "narrate: engineer")
		}
	}

	var enquiries []model.Enquiry
	if p.Enquiries != "" {
		enquiries, err = tableio.ReadEnquiries(p.Enquiries)
		if err != nil {
			return nil, "", eris.Wrap(err, "narrate: read enquiries")
		}
	}

	pairs, err := narrative.Generate(ctx, t, enquiries, narrativeOptions(c))
	if err != nil {
		return nil, "", err
	}
	if err := tableio.WritePairs(p.Output, format, pairs); err != nil {
		return nil, "", eris.Wrap(err, "narrate: write output")
	}

	var runID string
	if p.Save {
		st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, poolConfig(c))
		if err != nil {
			return nil, "", eris.Wrap(err, "narrate: open store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return nil, "", eris.Wrap(err, "narrate: migrate store")
		}
		runID, err = store.SaveRun(ctx, st, p.Input, pairs)
		if err != nil {
			return nil, "", eris.Wrap(err, "narrate: save run")
		}
	}

	zap.L().Info("narratives written",
		zap.String("input", p.Input),
		zap.String("output", p.Output),
		zap.Int("customers", len(pairs)),
		zap.String("run_id", runID),
	)
	return pairs, runID, nil
}

func init() {
	f := narrateCmd.Flags()
	f.StringVar(&narrateFlags.Input, "input", "", "engineered table, or paired table with --raw (required)")
	f.StringVar(&narrateFlags.Enquiries, "enquiries", "", "enquiry CSV (customer_no, subscriber_name, loan_type, inquiry_date)")
	f.StringVar(&narrateFlags.Output, "output", "", "report pairs path (required)")
	f.StringVar(&narrateFlags.Format, "format", "", "output format: jsonl, csv or xlsx (default from extension)")
	f.BoolVar(&narrateFlags.Raw, "raw", false, "run the feature pipeline on the input first")
	f.BoolVar(&narrateFlags.Save, "save", false, "record the pairs in the configured store")
	_ = narrateCmd.MarkFlagRequired("input")
	_ = narrateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(narrateCmd)
}
