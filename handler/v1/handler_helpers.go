package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/dao"
	"github.com/thejosephstevens/model-experiments/service"
)

func handlerLogger() *slog.Logger {
	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default().With("layer", "handler")
	}
	return logger.With("layer", "handler")
}

func writeHTTPError(ctx *gin.Context, err error) {
	logger := handlerLogger().With(
		"method", ctx.Request.Method,
		"path", ctx.FullPath(),
	)

	switch {
	case errors.Is(err, dao.ErrInvalidID),
		errors.Is(err, dao.ErrNilEntity),
		errors.Is(err, dao.ErrExperimentIDRequired),
		errors.Is(err, service.ErrRunnerKeyRequired):
		logger.Warn("request failed", "status", http.StatusBadRequest, "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, service.ErrRunnerNotFound):
		logger.Warn("request failed", "status", http.StatusNotFound, "error", err)
		ctx.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, service.ErrRedisNotInitialized):
		logger.Error("request failed", "status", http.StatusServiceUnavailable, "error", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "status", http.StatusInternalServerError, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
