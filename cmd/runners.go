package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/service"
)

// NewRunnersCommand returns the runners command group.
func NewRunnersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runners",
		Short: "Inspect the runner registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered training runners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitRedis(); err != nil {
				return err
			}
			defer config.CloseRedis()

			runners, err := service.ListRunners(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(runners)
		},
	})

	return cmd
}
