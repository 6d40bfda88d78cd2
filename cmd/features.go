package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/config"
	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/table"
	"github.com/sells-group/credit-delta/internal/tableio"
)

var (
	featuresInput  string
	featuresOutput string
	featuresFormat string
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Engineer credit-risk features from a paired bureau table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("features"); err != nil {
			return err
		}
		_, err := runFeatures(cmd.Context(), cfg, featuresInput, featuresOutput, featuresFormat)
		return err
	},
}

// runFeatures reads the paired table at input, engineers it, and writes the
// result to output.
func runFeatures(ctx context.Context, c *config.Config, input, output, format string) (*table.Table, error) {
	f, err := tableio.ParseFormat(format, output, tableio.FormatCSV)
	if err != nil {
		return nil, err
	}
	opts, err := inputOptions(c)
	if err != nil {
		return nil, err
	}

	in, err := tableio.ReadTable(ctx, input, opts)
	if err != nil {
		return nil, eris.Wrap(err, "features: read input")
	}
	out, err := feature.Engineer(in, featureOptions(c))
	if err != nil {
		return nil, eris.Wrap(err, "features: engineer")
	}
	if err := tableio.WriteTable(output, f, out); err != nil {
		return nil, eris.Wrap(err, "features: write output")
	}

	zap.L().Info("features written",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

func init() {
	featuresCmd.Flags().StringVar(&featuresInput, "input", "", "paired table (.csv or .xlsx, required)")
	featuresCmd.Flags().StringVar(&featuresOutput, "output", "", "engineered table path (required)")
	featuresCmd.Flags().StringVar(&featuresFormat, "format", "", "output format: csv or xlsx (default from extension)")
	_ = featuresCmd.MarkFlagRequired("input")
	_ = featuresCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(featuresCmd)
}
