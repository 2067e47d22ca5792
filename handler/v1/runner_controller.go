package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thejosephstevens/model-experiments/service"
)

type RunnerController struct{}

func NewRunnerController() *RunnerController {
	return &RunnerController{}
}

// ListRunners handles GET /v1/runners
// 返回 list，每项仅包含 key/base_url 两个字段。
func (c *RunnerController) ListRunners(ctx *gin.Context) {
	result, err := service.ListRunners(ctx.Request.Context())
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetRunner handles GET /v1/runners/:key
func (c *RunnerController) GetRunner(ctx *gin.Context) {
	result, err := service.GetRunnerByKey(ctx.Request.Context(), ctx.Param("key"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
