package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/service"
)

// NewModelCommand returns the model command group.
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Download base models and upload trained ones",
	}
	cmd.AddCommand(newModelDownloadCommand())
	cmd.AddCommand(newModelUploadCommand())
	return cmd
}

func newModelDownloadCommand() *cobra.Command {
	var (
		outputDir string
		cacheDir  string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a pretrained model with its tokenizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd.Context())
			if err != nil {
				return err
			}

			result, err := service.NewModelService(backend).Download(
				cmd.Context(), args[0], outputDir, cacheDir, force)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "models/base", "Directory for the model files")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Hub cache directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-download even when already materialized")
	return cmd
}

func newModelUploadCommand() *cobra.Command {
	var (
		server    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "upload <model-dir> <model-name>",
		Short: "Upload a trained model directory to a storage server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := service.NewTransferService().UploadModelDir(args[0], args[1], server, overwrite)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "Storage server name from the config file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing remote copy")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}
