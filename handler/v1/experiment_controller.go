package v1

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/thejosephstevens/model-experiments/dao"
	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/service"
)

type ExperimentController struct {
	experimentDAO *dao.ExperimentDAO
}

func NewExperimentController() *ExperimentController {
	return &ExperimentController{
		experimentDAO: dao.NewExperimentDAO(),
	}
}

// GetAllExperiments handles GET /v1/experiments
func (c *ExperimentController) GetAllExperiments(ctx *gin.Context) {
	var params entity.QueryParams
	if err := ctx.ShouldBindQuery(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, total, err := c.experimentDAO.FindAll(ctx.Request.Context(), params)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, entity.PageResult{Total: total, List: records})
}

// GetExperiment handles GET /v1/experiments/:id
func (c *ExperimentController) GetExperiment(ctx *gin.Context) {
	record, err := c.experimentDAO.FindByExperimentID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// GetExperimentComparison handles GET /v1/experiments/:id/comparison.
// The comparison document lives on disk next to the other run outputs; the
// registry row only points at the directory.
func (c *ExperimentController) GetExperimentComparison(ctx *gin.Context) {
	record, err := c.experimentDAO.FindByExperimentID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	comparisonPath := filepath.Join(record.Directory, "comparison", service.ComparisonFileName)
	raw, err := os.ReadFile(comparisonPath)
	if err != nil {
		if os.IsNotExist(err) {
			handlerLogger().Warn("comparison file missing", "experiment_id", record.ExperimentID, "path", comparisonPath)
			ctx.JSON(http.StatusNotFound, gin.H{"error": "comparison not found"})
			return
		}
		writeHTTPError(ctx, err)
		return
	}

	var result entity.ComparisonResult
	if err := json.Unmarshal(raw, &result); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
