package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/router"
)

// NewServeCommand returns the serve command: a read-only HTTP API over the
// experiment registry and the runner registry.
func NewServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the experiment registry over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 默认使用 release，避免线上以 debug 模式启动
			if gin.Mode() == gin.DebugMode {
				gin.SetMode(gin.ReleaseMode)
			}

			if err := config.InitDB(); err != nil {
				return fmt.Errorf("init database failed: %w", err)
			}
			defer config.CloseDB()

			// The runner routes degrade to 503 when Redis is unreachable.
			if err := config.InitRedis(); err != nil {
				config.EnsureLoggerInitialized().Warn("redis unavailable, runner routes disabled", "error", err)
			} else {
				defer config.CloseRedis()
			}

			if !cmd.Flags().Changed("port") {
				port = config.AppConfig.Server.Port
			}

			r := router.SetupRouter()
			address := fmt.Sprintf(":%d", port)
			config.EnsureLoggerInitialized().Info("http server listening", "address", address)
			return r.Run(address)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (default: config file value)")
	return cmd
}
