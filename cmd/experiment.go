package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/dao"
	"github.com/thejosephstevens/model-experiments/service"
)

// NewExperimentCommand returns the run-experiment command: the end-to-end
// pipeline from dataset download to comparison report.
func NewExperimentCommand() *cobra.Command {
	var (
		model   string
		profile string
		baseDir string
		metrics []string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "run-experiment <dataset>",
		Short: "Run the full fine-tune, evaluate and compare pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd.Context())
			if err != nil {
				return err
			}

			// Registered runs are browsable through the serve API; a broken
			// registry only costs the record, never the run.
			var registry service.ExperimentRegistry
			if err := config.InitDB(); err != nil {
				config.EnsureLoggerInitialized().Warn("experiment registry unavailable", "error", err)
			} else {
				registry = dao.NewExperimentDAO()
				defer config.CloseDB()
			}

			result, err := service.NewExperimentService(backend, registry).Run(cmd.Context(), service.ExperimentRequest{
				DatasetName: args[0],
				ModelName:   model,
				Profile:     profile,
				BaseDir:     baseDir,
				Metrics:     metrics,
				Force:       force,
			})
			if err != nil {
				return err
			}
			return printJSON(result.Summary)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "distilbert-base-uncased", "Base model to fine-tune")
	cmd.Flags().StringVarP(&profile, "profile", "p", "default", "Training profile (quick, default, full)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "experiments", "Directory experiments are created under")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "Metrics to compute (default: accuracy, f1, precision, recall)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Retrain even when the cached artifact is valid")
	return cmd
}
