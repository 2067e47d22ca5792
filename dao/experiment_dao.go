package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/entity"
)

var ErrExperimentIDRequired = errors.New("experiment id is required")

type ExperimentDAO struct {
	DB *gorm.DB
}

func NewExperimentDAO() *ExperimentDAO {
	return &ExperimentDAO{
		DB: config.DB,
	}
}

func (d *ExperimentDAO) Save(ctx context.Context, record *entity.ExperimentRecord) error {
	if record == nil {
		return ErrNilEntity
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return fmt.Errorf("save experiment failed: %w", err)
	}
	return dbConn.Create(record).Error
}

func (d *ExperimentDAO) FindByExperimentID(ctx context.Context, experimentID string) (*entity.ExperimentRecord, error) {
	trimmed := strings.TrimSpace(experimentID)
	if trimmed == "" {
		return nil, ErrExperimentIDRequired
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find experiment failed: %w", err)
	}

	var record entity.ExperimentRecord
	err = dbConn.Where("experiment_id = ?", trimmed).First(&record).Error
	return &record, err
}

func (d *ExperimentDAO) FindAll(ctx context.Context, params entity.QueryParams) ([]entity.ExperimentRecord, int64, error) {
	var records []entity.ExperimentRecord
	var total int64

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("find experiments failed: %w", err)
	}

	dbConn = dbConn.Model(&entity.ExperimentRecord{})

	// 1. 基础模糊搜索
	if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
		dbConn = dbConn.Where("experiment_id LIKE ? OR dataset_name LIKE ? OR model_name LIKE ?",
			"%"+keyword+"%", "%"+keyword+"%", "%"+keyword+"%")
	}

	// 2. 指标组合过滤
	if datasetName := strings.TrimSpace(params.DatasetName); datasetName != "" {
		dbConn = dbConn.Where("dataset_name = ?", datasetName)
	}
	if modelName := strings.TrimSpace(params.ModelName); modelName != "" {
		dbConn = dbConn.Where("model_name = ?", modelName)
	}
	if profile := strings.TrimSpace(params.Profile); profile != "" {
		dbConn = dbConn.Where("profile = ?", profile)
	}
	if status := strings.TrimSpace(params.Status); status != "" {
		dbConn = dbConn.Where("status = ?", status)
	}

	if err := dbConn.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count experiments failed: %w", err)
	}

	offset, limit := pagination(params)
	err = dbConn.Order("id DESC").Offset(offset).Limit(limit).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("find experiments failed: %w", err)
	}

	return records, total, nil
}

func (d *ExperimentDAO) UpdateStatus(ctx context.Context, experimentID, status, failureStage string) error {
	trimmed := strings.TrimSpace(experimentID)
	if trimmed == "" {
		return ErrExperimentIDRequired
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return fmt.Errorf("update experiment status failed: %w", err)
	}

	result := dbConn.Model(&entity.ExperimentRecord{}).
		Where("experiment_id = ?", trimmed).
		Updates(map[string]interface{}{
			"status":        status,
			"failure_stage": failureStage,
		})
	if result.Error != nil {
		return fmt.Errorf("update experiment status failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
