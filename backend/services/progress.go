package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"vlab-server/backend/models"
)

// EnsureProgress records that a student opened an experiment. Get-or-create;
// idempotent: a second call only refreshes LastAccessed, and a completed
// record is never demoted.
func EnsureProgress(db *gorm.DB, userID, experimentID uint) (*models.Progress, error) {
	var progress models.Progress
	err := db.Where("user_id = ? AND experiment_id = ?", userID, experimentID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = models.Progress{
			UserID:       userID,
			ExperimentID: experimentID,
			Status:       models.ProgressInProgress,
			LastAccessed: time.Now(),
		}
		if err := db.Create(&progress).Error; err != nil {
			return nil, err
		}
		return &progress, nil
	}
	if err != nil {
		return nil, err
	}

	progress.LastAccessed = time.Now()
	if progress.Status == models.ProgressNotStarted {
		progress.Status = models.ProgressInProgress
	}
	if err := db.Save(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

// MarkExperimentCompleted completes a student's progress on an experiment,
// either from the explicit mark-complete action or from a passed test.
// CompletedAt is write-once: re-completing never moves the original stamp.
func MarkExperimentCompleted(db *gorm.DB, userID, experimentID uint) (*models.Progress, error) {
	var progress models.Progress
	now := time.Now()

	err := db.Where("user_id = ? AND experiment_id = ?", userID, experimentID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = models.Progress{
			UserID:       userID,
			ExperimentID: experimentID,
			Status:       models.ProgressCompleted,
			LastAccessed: now,
			CompletedAt:  &now,
		}
		if err := db.Create(&progress).Error; err != nil {
			return nil, err
		}
		return &progress, nil
	}
	if err != nil {
		return nil, err
	}

	if progress.Status == models.ProgressCompleted {
		return &progress, nil
	}

	progress.Status = models.ProgressCompleted
	progress.LastAccessed = now
	if progress.CompletedAt == nil {
		progress.CompletedAt = &now
	}
	if err := db.Save(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}
