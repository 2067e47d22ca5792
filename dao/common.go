package dao

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/entity"
)

var (
	ErrDBNotInitialized = errors.New("gorm db 没有初始化")
	ErrInvalidID        = errors.New("传入的 ID 不合法")
	ErrNilEntity        = errors.New("实体对象 为 nil")
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

func daoLogger() *slog.Logger {
	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default()
	}
	return logger.With("layer", "dao")
}

// withContext 安全增加上下文
func withContext(dbConn *gorm.DB, ctx context.Context) (*gorm.DB, error) {
	logger := daoLogger().With("func", "withContext")
	if dbConn == nil {
		logger.Error("db is nil")
		return nil, ErrDBNotInitialized
	}
	if ctx == nil {
		logger.Debug("context is nil, use background")
		ctx = context.Background()
	}
	return dbConn.WithContext(ctx), nil
}

// normalizeQueryParams 规范查询参数
func normalizeQueryParams(params entity.QueryParams) entity.QueryParams {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	return params
}

// 返回分页参数
func pagination(params entity.QueryParams) (offset, limit int) {
	p := normalizeQueryParams(params)
	return (p.Page - 1) * p.PageSize, p.PageSize
}
