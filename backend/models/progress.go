package models

import (
	"time"

	"gorm.io/gorm"
)

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Progress tracks one student's state on one experiment. CompletedAt is
// stamped once on the transition into completed and never reset.
type Progress struct {
	gorm.Model
	UserID       uint           `gorm:"not null;uniqueIndex:idx_user_experiment"`
	ExperimentID uint           `gorm:"not null;uniqueIndex:idx_user_experiment"`
	Status       ProgressStatus `gorm:"default:not_started"`
	LastAccessed time.Time
	CompletedAt  *time.Time
}
