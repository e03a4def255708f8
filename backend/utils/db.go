package utils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs AutoMigrate for every model. Shared by main and the test
// suites so the schema lists never drift apart.
func Migrate(db *gorm.DB) error {
	if err := autoMigrate(db); err != nil {
		return err
	}

	// Storage-level guard for the at-most-one-started-attempt invariant.
	// Partial indexes work on both Postgres and the sqlite test driver.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_started_attempt
		ON test_attempts (user_id, test_id) WHERE status = 'started'`).Error
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.LoginHistory{},
		&models.UserActivity{},
		&models.Subject{},
		&models.Experiment{},
		&models.VivaQuestion{},
		&models.Progress{},
		&models.Test{},
		&models.MCQQuestion{},
		&models.TestAttempt{},
		&models.TestResponse{},
	)
}
