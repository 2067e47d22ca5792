package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/service"
)

// NewEvaluateCommand returns the evaluate command.
func NewEvaluateCommand() *cobra.Command {
	var (
		testData       string
		outputFile     string
		predictionsLog string
		batchSize      int
		maxLength      int
		metrics        []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <model-path>",
		Short: "Evaluate a model checkpoint over held-out data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd.Context())
			if err != nil {
				return err
			}

			report, err := service.NewEvaluateService(backend).Evaluate(cmd.Context(), service.EvaluateRequest{
				ModelPath:          args[0],
				TestDataPath:       testData,
				OutputFile:         outputFile,
				BatchSize:          batchSize,
				MaxLength:          maxLength,
				Metrics:            metrics,
				PredictionsLogPath: predictionsLog,
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().StringVar(&testData, "test-data", "", "Held-out data jsonl file")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "Write the metrics report to this file")
	cmd.Flags().StringVar(&predictionsLog, "predictions-log", "", "Write per-example predictions to this jsonl file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "Inference batch size")
	cmd.Flags().IntVar(&maxLength, "max-length", 512, "Token truncation length")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "Metrics to compute (default: accuracy, f1, precision, recall)")
	_ = cmd.MarkFlagRequired("test-data")
	return cmd
}
