package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thejosephstevens/model-experiments/entity"
)

var DB *gorm.DB

// InitDB opens (and if needed creates) the local experiment registry, a
// single sqlite file.
func InitDB() error {
	if AppConfig == nil {
		return errors.New("app config is not initialized")
	}

	path := strings.TrimSpace(AppConfig.Registry.Path)
	if path == "" {
		path = defaultRegistryPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir failed: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open registry failed (path=%s): %w", path, err)
	}

	if err := ensureTables(db); err != nil {
		return err
	}

	DB = db
	return nil
}

func ensureTables(db *gorm.DB) error {
	models := []interface{}{
		&entity.ExperimentRecord{},
	}

	for _, m := range models {
		if db.Migrator().HasTable(m) {
			continue
		}
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate missing table failed: %w", err)
		}
	}

	return nil
}

// CloseDB 释放注册库连接（主要给测试用）。
func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	DB = nil
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}
