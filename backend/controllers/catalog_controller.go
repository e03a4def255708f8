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

type CatalogController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewCatalogController(db *gorm.DB, cfg *config.Config) *CatalogController {
	return &CatalogController{DB: db, Cfg: cfg}
}

const scopeNotice = "You do not have access to this content."

// Dashboard lists the subjects in the student's branch+semester scope
// with a progress summary. Staff are redirected to the admin console.
func (cc *CatalogController) Dashboard(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var user models.User
	if err := cc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}
	if user.IsStaff || user.IsSuperuser {
		return utils.Redirect(c, fiber.StatusOK, "/admin",
			"Redirecting to the admin console.", "info")
	}

	profile, err := services.GetOrCreateProfile(cc.DB, cc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	var subjects []models.Subject
	if err := cc.DB.Where("branch = ? AND semester = ?",
		profile.Branch, profile.CurrentSemester).
		Order("name asc").Find(&subjects).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, subject := range subjects {
		var experimentCount int64
		cc.DB.Model(&models.Experiment{}).
			Where("subject_id = ?", subject.ID).Count(&experimentCount)

		var completedCount int64
		cc.DB.Model(&models.Progress{}).
			Joins("JOIN experiments ON experiments.id = progresses.experiment_id").
			Where("progresses.user_id = ? AND experiments.subject_id = ? AND progresses.status = ?",
				userID, subject.ID, models.ProgressCompleted).
			Count(&completedCount)

		result = append(result, fiber.Map{
			"id":          subject.ID,
			"name":        subject.Name,
			"description": subject.Description,
			"branch":      subject.Branch,
			"semester":    subject.Semester,
			"experiments": experimentCount,
			"completed":   completedCount,
		})
	}

	return c.JSON(fiber.Map{
		"branch":   profile.Branch,
		"semester": profile.CurrentSemester,
		"subjects": result,
	})
}

// GetSubject returns one subject with its experiments and the student's
// progress per experiment. Out-of-scope subjects are denied, not hidden.
func (cc *CatalogController) GetSubject(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	subjectID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid subject ID")
	}

	var subject models.Subject
	if err := cc.DB.Preload("Experiments").First(&subject, subjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Subject not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	user, profile, err := cc.userAndProfile(userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}
	if !services.CanAccessSubject(user, profile, &subject) {
		return utils.Redirect(c, fiber.StatusForbidden, "/dashboard", scopeNotice, "warning")
	}

	var experiments []fiber.Map
	for _, exp := range subject.Experiments {
		status := models.ProgressNotStarted
		var progress models.Progress
		if err := cc.DB.Where("user_id = ? AND experiment_id = ?",
			userID, exp.ID).First(&progress).Error; err == nil {
			status = progress.Status
		}

		var hasTest bool
		var test models.Test
		if err := cc.DB.Where("experiment_id = ?", exp.ID).First(&test).Error; err == nil {
			hasTest = true
		}

		experiments = append(experiments, fiber.Map{
			"id":        exp.ID,
			"title":     exp.Title,
			"objective": exp.Objective,
			"status":    status,
			"has_test":  hasTest,
		})
	}

	return c.JSON(fiber.Map{
		"subject": fiber.Map{
			"id":          subject.ID,
			"name":        subject.Name,
			"description": subject.Description,
			"branch":      subject.Branch,
			"semester":    subject.Semester,
		},
		"experiments": experiments,
	})
}

// GetExperiment serves the experiment content (markdown rendered to HTML)
// and records the view in the progress tracker.
func (cc *CatalogController) GetExperiment(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	experimentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid experiment ID")
	}

	var experiment models.Experiment
	if err := cc.DB.Preload("VivaQuestions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order asc")
	}).First(&experiment, experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Experiment not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var subject models.Subject
	if err := cc.DB.First(&subject, experiment.SubjectID).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	user, profile, err := cc.userAndProfile(userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}
	if !services.CanAccessSubject(user, profile, &subject) {
		return utils.Redirect(c, fiber.StatusForbidden, "/dashboard", scopeNotice, "warning")
	}

	progress, err := services.EnsureProgress(cc.DB, userID, experiment.ID)
	if err != nil {
		return utils.InternalServerError(c, "Could not update progress")
	}

	var vivaQuestions []fiber.Map
	for _, q := range experiment.VivaQuestions {
		vivaQuestions = append(vivaQuestions, fiber.Map{
			"question": q.QuestionText,
			"answer":   q.Answer,
			"order":    q.SequenceOrder,
		})
	}

	var hasTest bool
	var test models.Test
	if err := cc.DB.Where("experiment_id = ?", experiment.ID).First(&test).Error; err == nil {
		hasTest = true
	}

	return c.JSON(fiber.Map{
		"experiment": fiber.Map{
			"id":                   experiment.ID,
			"subject_id":           experiment.SubjectID,
			"title":                experiment.Title,
			"objective":            experiment.Objective,
			"theory_html":          utils.RenderMarkdown(experiment.Theory),
			"procedure_html":       utils.RenderMarkdown(experiment.Procedure),
			"simulation_url":       experiment.SimulationURL,
			"simulation_embed":     experiment.SimulationEmbed,
			"additional_resources": experiment.AdditionalResources,
			"viva_questions":       vivaQuestions,
			"has_test":             hasTest,
		},
		"progress": fiber.Map{
			"status":        progress.Status,
			"last_accessed": progress.LastAccessed,
			"completed_at":  progress.CompletedAt,
		},
	})
}

func (cc *CatalogController) userAndProfile(userID uint) (*models.User, *models.UserProfile, error) {
	var user models.User
	if err := cc.DB.First(&user, userID).Error; err != nil {
		return nil, nil, err
	}
	profile, err := services.GetOrCreateProfile(cc.DB, cc.Cfg, userID)
	if err != nil {
		return nil, nil, err
	}
	return &user, profile, nil
}
