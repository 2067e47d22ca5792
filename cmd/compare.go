package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/service"
)

// NewCompareCommand returns the compare command.
func NewCompareCommand() *cobra.Command {
	var (
		outputDir  string
		format     string
		saveReport bool
	)

	cmd := &cobra.Command{
		Use:   "compare <baseline-metrics.json> <fine-tuned-metrics.json>",
		Short: "Compare two metrics reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := service.NewCompareService().Compare(service.CompareRequest{
				BaselinePath:  args[0],
				FineTunedPath: args[1],
				OutputDir:     outputDir,
				Format:        format,
				SaveReport:    saveReport,
			})
			if err != nil {
				return err
			}

			if outcome.Rendered != "" {
				fmt.Fprint(cmd.OutOrStdout(), outcome.Rendered)
				return nil
			}
			return printJSON(outcome.Result)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "comparison", "Directory for comparison.json")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json or html")
	cmd.Flags().BoolVar(&saveReport, "save-report", false, "Also write an HTML report")
	return cmd
}
