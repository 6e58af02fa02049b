package database

import (
	"github.com/nuruplay/api/internal/config"
	"github.com/nuruplay/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Assignment{},
		&model.AssignmentTarget{},
	)
	if err != nil {
		return err
	}

	// One row per (assignment, child); re-targeting the same child must be
	// an update, never a duplicate row.
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_targets_assignment_child ON assignment_targets(assignment_id, child_id)")

	return nil
}
