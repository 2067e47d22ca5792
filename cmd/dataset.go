package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/service"
)

// NewDatasetCommand returns the dataset command group.
func NewDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Download and split datasets",
	}
	cmd.AddCommand(newDatasetDownloadCommand())
	cmd.AddCommand(newDatasetSplitCommand())
	return cmd
}

func newDatasetDownloadCommand() *cobra.Command {
	var (
		outputDir  string
		maxSamples int
		cacheDir   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a dataset from the hub and persist its splits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd.Context())
			if err != nil {
				return err
			}

			result, err := service.NewDatasetService(backend).Download(
				cmd.Context(), args[0], outputDir, maxSamples, cacheDir, force)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "data", "Directory for the materialized splits")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Per-split sample cap (0 = no cap)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Hub cache directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-download even when already materialized")
	return cmd
}

func newDatasetSplitCommand() *cobra.Command {
	var (
		outputDir  string
		trainRatio float64
		valRatio   float64
		seed       int64
		stratify   bool
	)

	cmd := &cobra.Command{
		Use:   "split <input.jsonl>",
		Short: "Split a local jsonl file into train and validation sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := service.NewDatasetService(nil).Split(
				args[0], outputDir, trainRatio, valRatio, seed, stratify)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "data", "Directory for the split files")
	cmd.Flags().Float64Var(&trainRatio, "train-ratio", 0.8, "Fraction of examples for training")
	cmd.Flags().Float64Var(&valRatio, "val-ratio", 0.2, "Fraction of examples for validation")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Shuffle seed")
	cmd.Flags().BoolVar(&stratify, "stratify", false, "Preserve the label distribution across splits")
	return cmd
}
