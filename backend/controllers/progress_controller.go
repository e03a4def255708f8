package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

type ProgressController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewProgressController(db *gorm.DB, cfg *config.Config) *ProgressController {
	return &ProgressController{DB: db, Cfg: cfg}
}

// MarkComplete is the direct mark-complete action; no test gating.
func (pc *ProgressController) MarkComplete(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	experimentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid experiment ID")
	}

	var experiment models.Experiment
	if err := pc.DB.First(&experiment, experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Experiment not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var subject models.Subject
	if err := pc.DB.First(&subject, experiment.SubjectID).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var user models.User
	if err := pc.DB.First(&user, userID).Error; err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}
	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}
	if !services.CanAccessSubject(&user, profile, &subject) {
		return utils.Redirect(c, fiber.StatusForbidden, "/dashboard", scopeNotice, "warning")
	}

	if _, err := services.MarkExperimentCompleted(pc.DB, userID, experiment.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// StudentProgress aggregates per-subject completion and test statistics
// for the student's scoped subjects.
func (pc *ProgressController) StudentProgress(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	var subjects []models.Subject
	if err := pc.DB.Where("branch = ? AND semester = ?",
		profile.Branch, profile.CurrentSemester).
		Order("name asc").Find(&subjects).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	totalExperiments := int64(0)
	totalCompleted := int64(0)
	var perSubject []fiber.Map

	for _, subject := range subjects {
		var experimentCount int64
		pc.DB.Model(&models.Experiment{}).
			Where("subject_id = ?", subject.ID).Count(&experimentCount)

		var completedCount int64
		pc.DB.Model(&models.Progress{}).
			Joins("JOIN experiments ON experiments.id = progresses.experiment_id").
			Where("progresses.user_id = ? AND experiments.subject_id = ? AND progresses.status = ?",
				userID, subject.ID, models.ProgressCompleted).
			Count(&completedCount)

		var inProgressCount int64
		pc.DB.Model(&models.Progress{}).
			Joins("JOIN experiments ON experiments.id = progresses.experiment_id").
			Where("progresses.user_id = ? AND experiments.subject_id = ? AND progresses.status = ?",
				userID, subject.ID, models.ProgressInProgress).
			Count(&inProgressCount)

		var testStats struct {
			Attempts      int64
			BestScore     int
			BestPercent   float64
			PassedTests   int64
			AvgPercentage float64
		}
		pc.DB.Model(&models.TestAttempt{}).
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Where("test_attempts.user_id = ? AND tests.subject_id = ? AND test_attempts.status = ?",
				userID, subject.ID, models.AttemptCompleted).
			Count(&testStats.Attempts)
		pc.DB.Model(&models.TestAttempt{}).
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Where("test_attempts.user_id = ? AND tests.subject_id = ? AND test_attempts.status = ?",
				userID, subject.ID, models.AttemptCompleted).
			Select("COALESCE(MAX(test_attempts.score), 0)").Scan(&testStats.BestScore)
		pc.DB.Model(&models.TestAttempt{}).
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Where("test_attempts.user_id = ? AND tests.subject_id = ? AND test_attempts.status = ?",
				userID, subject.ID, models.AttemptCompleted).
			Select("COALESCE(MAX(test_attempts.percentage), 0)").Scan(&testStats.BestPercent)
		pc.DB.Model(&models.TestAttempt{}).
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Where("test_attempts.user_id = ? AND tests.subject_id = ? AND test_attempts.status = ? AND test_attempts.is_passed = ?",
				userID, subject.ID, models.AttemptCompleted, true).
			Count(&testStats.PassedTests)
		pc.DB.Model(&models.TestAttempt{}).
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Where("test_attempts.user_id = ? AND tests.subject_id = ? AND test_attempts.status = ?",
				userID, subject.ID, models.AttemptCompleted).
			Select("COALESCE(AVG(test_attempts.percentage), 0)").Scan(&testStats.AvgPercentage)

		totalExperiments += experimentCount
		totalCompleted += completedCount

		perSubject = append(perSubject, fiber.Map{
			"subject_id":   subject.ID,
			"subject_name": subject.Name,
			"experiments":  experimentCount,
			"completed":    completedCount,
			"in_progress":  inProgressCount,
			"tests": fiber.Map{
				"attempts":       testStats.Attempts,
				"best_score":     testStats.BestScore,
				"best_percent":   testStats.BestPercent,
				"passed":         testStats.PassedTests,
				"avg_percentage": testStats.AvgPercentage,
			},
		})
	}

	overall := float64(0)
	if totalExperiments > 0 {
		overall = float64(totalCompleted) / float64(totalExperiments) * 100
	}

	return c.JSON(fiber.Map{
		"branch":            profile.Branch,
		"semester":          profile.CurrentSemester,
		"total_experiments": totalExperiments,
		"total_completed":   totalCompleted,
		"overall_percent":   overall,
		"subjects":          perSubject,
	})
}
