// Package cmd contains the model-experiments CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/mlbackend"
	"github.com/thejosephstevens/model-experiments/service"
)

const Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:     "model-experiments",
	Short:   "Fine-tune, evaluate and compare transformer models",
	Version: Version,
	Long: `
Run reproducible fine-tuning experiments against an ML runner service:
download datasets and base models, fine-tune with cached artifacts keyed by
a config fingerprint, evaluate base and fine-tuned checkpoints, and compare
the results.
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.InitConfig(); err != nil {
			return err
		}
		config.InitLogger()
		return nil
	},
}

// runnerKey is shared by every command that talks to the backend: it selects
// a runner registered in Redis instead of the configured base URL.
var runnerKey string

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runnerKey, "runner", "", "Runner key from the registry (default: configured backend)")

	rootCmd.AddCommand(NewDatasetCommand())
	rootCmd.AddCommand(NewModelCommand())
	rootCmd.AddCommand(NewTrainCommand())
	rootCmd.AddCommand(NewEvaluateCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewExperimentCommand())
	rootCmd.AddCommand(NewRunnersCommand())
	rootCmd.AddCommand(NewServeCommand())
}

// resolveBackend builds the runner client. The --runner flag overrides the
// configured base URL via the Redis registry; the registry is only dialed
// when the flag (or a configured default runner) is actually set.
func resolveBackend(ctx context.Context) (mlbackend.Client, error) {
	backend := config.AppConfig.Backend

	key := strings.TrimSpace(runnerKey)
	if key == "" {
		key = strings.TrimSpace(backend.DefaultRunner)
	}
	if key == "" {
		return mlbackend.NewHTTPClient(backend.BaseURL, backend.Timeout())
	}

	if err := config.InitRedis(); err != nil {
		return nil, fmt.Errorf("connect runner registry failed: %w", err)
	}
	runner, err := service.GetRunnerByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve runner %q failed: %w", key, err)
	}
	return mlbackend.NewHTTPClient(runner.BaseURL, backend.Timeout())
}

// printJSON writes command results to stdout as indented JSON.
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
