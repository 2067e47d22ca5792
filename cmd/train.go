package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/service"
)

// NewTrainCommand returns the train command. Hyperparameters start from a
// profile and individual flags override it.
func NewTrainCommand() *cobra.Command {
	var (
		profile      string
		trainData    string
		valData      string
		outputDir    string
		workDir      string
		epochs       int
		batchSize    int
		learningRate float64
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "train <model-name>",
		Short: "Fine-tune a model, reusing cached artifacts when nothing changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := service.ResolveProfile(profile)
			if err != nil {
				return err
			}
			cfg := resolved.Config
			cfg.ModelName = args[0]
			if cmd.Flags().Changed("epochs") {
				cfg.Epochs = epochs
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.BatchSize = batchSize
			}
			if cmd.Flags().Changed("learning-rate") {
				cfg.LearningRate = learningRate
			}

			backend, err := resolveBackend(cmd.Context())
			if err != nil {
				return err
			}

			outcome, err := service.NewTrainingService(backend).Train(cmd.Context(), service.TrainingRequest{
				Config:        cfg,
				TrainDataPath: trainData,
				ValDataPath:   valData,
				OutputDir:     outputDir,
				WorkDir:       workDir,
				Force:         force,
			})
			if err != nil {
				return err
			}
			return printJSON(outcome)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "default", "Training profile (quick, default, full)")
	cmd.Flags().StringVar(&trainData, "train-data", "", "Training data jsonl file")
	cmd.Flags().StringVar(&valData, "val-data", "", "Validation data jsonl file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "models/fine-tuned", "Directory for the trained model")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Scratch directory for checkpoints")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Override the profile's epoch count")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override the profile's batch size")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "Override the profile's learning rate")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Retrain even when the cached artifact is valid")
	_ = cmd.MarkFlagRequired("train-data")
	_ = cmd.MarkFlagRequired("val-data")
	return cmd
}
