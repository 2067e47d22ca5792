package router

import (
	"github.com/gin-gonic/gin"

	"github.com/thejosephstevens/model-experiments/config"
	v1 "github.com/thejosephstevens/model-experiments/handler/v1"
)

func SetupRouter() *gin.Engine {
	experimentController := v1.NewExperimentController()
	runnerController := v1.NewRunnerController()

	r := gin.Default()
	r.Use(gin.Recovery())

	v1Group := r.Group("/v1")
	{
		// Experiment registry routes
		experiments := v1Group.Group("/experiments")
		{
			experiments.GET("", experimentController.GetAllExperiments)
			experiments.GET("/:id", experimentController.GetExperiment)
			experiments.GET("/:id/comparison", experimentController.GetExperimentComparison)
		}

		// Runner registry routes
		runners := v1Group.Group("/runners")
		{
			runners.GET("", runnerController.ListRunners)
			runners.GET("/:key", runnerController.GetRunner)
		}
	}

	// 实验输出目录直接挂成静态资源，方便浏览 report.html 等产物
	experimentsDir := "experiments"
	if config.AppConfig != nil && config.AppConfig.Server.ExperimentsDir != "" {
		experimentsDir = config.AppConfig.Server.ExperimentsDir
	}
	r.Static("/reports", experimentsDir)

	return r
}
