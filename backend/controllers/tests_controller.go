package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

type TestsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewTestsController(db *gorm.DB, cfg *config.Config) *TestsController {
	return &TestsController{DB: db, Cfg: cfg}
}

// BeginTest starts or resumes the student's attempt on the experiment's
// test. A started attempt is always resumed as-is, prior answers
// attached; a completed attempt (with no started one) opens a retake.
func (tc *TestsController) BeginTest(c *fiber.Ctx) error {
	userID, test, errResp := tc.loadScopedTest(c)
	if errResp != nil {
		return errResp(c)
	}

	grace := time.Duration(tc.Cfg.AttemptGraceMinutes) * time.Minute
	attempt, questions, err := services.BeginOrResumeAttempt(tc.DB, userID, test, grace)
	if err != nil {
		return utils.InternalServerError(c, "Could not start attempt")
	}

	var questionViews []fiber.Map
	for _, aq := range questions {
		var options []string
		if err := json.Unmarshal(aq.Question.Options, &options); err != nil {
			log.Printf("Malformed options on question %d: %v", aq.Question.ID, err)
		}

		questionViews = append(questionViews, fiber.Map{
			"id":              aq.Question.ID,
			"text":            aq.Question.Text,
			"options":         options,
			"marks":           aq.Question.Marks,
			"order":           aq.Question.SequenceOrder,
			"selected_option": aq.SelectedOption,
		})
	}

	return c.JSON(fiber.Map{
		"attempt": fiber.Map{
			"ref":         attempt.Ref,
			"status":      attempt.Status,
			"started_at":  attempt.StartedAt,
			"total_marks": attempt.TotalMarks,
		},
		"test": fiber.Map{
			"id":               test.ID,
			"title":            test.Title,
			"description":      test.Description,
			"duration_minutes": test.DurationMinutes,
			"passing_marks":    test.PassingMarks,
		},
		"questions": questionViews,
	})
}

// SubmitTest scores the started attempt. Submission is a one-shot
// transition: the response always redirects to the results view.
func (tc *TestsController) SubmitTest(c *fiber.Ctx) error {
	userID, test, errResp := tc.loadScopedTest(c)
	if errResp != nil {
		return errResp(c)
	}

	var input struct {
		Answers []struct {
			QuestionID     uint `json:"question_id"`
			SelectedOption int  `json:"selected_option"`
		} `json:"answers"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	answers := make(map[uint]int, len(input.Answers))
	for _, a := range input.Answers {
		if a.SelectedOption > 0 {
			answers[a.QuestionID] = a.SelectedOption
		}
	}

	resultPath := fmt.Sprintf("/experiment/%s/test/result", c.Params("id"))

	attempt, err := services.SubmitAttempt(tc.DB, userID, test, answers)
	if errors.Is(err, services.ErrAlreadySubmitted) {
		return utils.Redirect(c, fiber.StatusConflict, resultPath,
			"This attempt was already submitted.", "warning")
	}
	if errors.Is(err, services.ErrNoStartedAttempt) {
		return utils.Redirect(c, fiber.StatusConflict,
			fmt.Sprintf("/experiment/%s/test", c.Params("id")),
			"No attempt in progress. Start the test first.", "warning")
	}
	if err != nil {
		return utils.InternalServerError(c, "Could not submit attempt")
	}

	notice := fmt.Sprintf("You scored %d of %d. %d marks are required to pass.",
		attempt.Score, attempt.TotalMarks, test.PassingMarks)
	level := "warning"
	if attempt.IsPassed {
		notice = fmt.Sprintf("Test passed with %.1f%%. Experiment marked complete.", attempt.Percentage)
		level = "success"
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"redirect": resultPath,
		"notice":   notice,
		"level":    level,
		"attempt": fiber.Map{
			"ref":        attempt.Ref,
			"score":      attempt.Score,
			"percentage": attempt.Percentage,
			"is_passed":  attempt.IsPassed,
		},
	})
}

// TestResult renders the most recent completed attempt, question by
// question with correct answers revealed.
func (tc *TestsController) TestResult(c *fiber.Ctx) error {
	userID, test, errResp := tc.loadScopedTest(c)
	if errResp != nil {
		return errResp(c)
	}

	attempt, err := services.LatestCompletedAttempt(tc.DB, userID, test.ID)
	if errors.Is(err, services.ErrNoCompletedAttempt) {
		return utils.Redirect(c, fiber.StatusNotFound,
			fmt.Sprintf("/experiment/%s/test", c.Params("id")),
			"You have not completed this test yet.", "info")
	}
	if err != nil {
		return utils.InternalServerError(c, "Could not load results")
	}

	details, correct, incorrect, err := services.AttemptResult(tc.DB, attempt)
	if err != nil {
		return utils.InternalServerError(c, "Could not load results")
	}

	var questionViews []fiber.Map
	for _, d := range details {
		var options []string
		if err := json.Unmarshal(d.Question.Options, &options); err != nil {
			log.Printf("Malformed options on question %d: %v", d.Question.ID, err)
		}

		questionViews = append(questionViews, fiber.Map{
			"id":              d.Question.ID,
			"text":            d.Question.Text,
			"options":         options,
			"marks":           d.Question.Marks,
			"order":           d.Question.SequenceOrder,
			"correct_option":  d.Question.CorrectOption,
			"answered":        d.Answered,
			"selected_option": d.SelectedOption,
			"is_correct":      d.IsCorrect,
		})
	}

	return c.JSON(fiber.Map{
		"test": fiber.Map{
			"id":            test.ID,
			"title":         test.Title,
			"passing_marks": test.PassingMarks,
		},
		"attempt": fiber.Map{
			"ref":             attempt.Ref,
			"score":           attempt.Score,
			"total_marks":     attempt.TotalMarks,
			"percentage":      attempt.Percentage,
			"is_passed":       attempt.IsPassed,
			"completed_at":    attempt.CompletedAt,
			"time_taken_secs": attempt.TimeTakenSecs,
			"correct":         correct,
			"incorrect":       incorrect,
		},
		"questions": questionViews,
	})
}

// loadScopedTest resolves the experiment's test with the scope check
// applied. Returns a deferred error responder so handlers can bail out
// with the right payload.
func (tc *TestsController) loadScopedTest(c *fiber.Ctx) (uint, *models.Test, func(*fiber.Ctx) error) {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.Unauthorized(c, "Unauthorized")
		}
	}

	experimentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.BadRequest(c, "Invalid experiment ID")
		}
	}

	var experiment models.Experiment
	if err := tc.DB.First(&experiment, experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, func(c *fiber.Ctx) error {
				return utils.NotFound(c, "Experiment not found")
			}
		}
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.InternalServerError(c, "Could not query database")
		}
	}

	var subject models.Subject
	if err := tc.DB.First(&subject, experiment.SubjectID).Error; err != nil {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.InternalServerError(c, "Could not query database")
		}
	}

	var user models.User
	if err := tc.DB.First(&user, userID).Error; err != nil {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.Unauthorized(c, "Unauthorized")
		}
	}
	profile, err := services.GetOrCreateProfile(tc.DB, tc.Cfg, userID)
	if err != nil {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.InternalServerError(c, "Could not load profile")
		}
	}
	if !services.CanAccessSubject(&user, profile, &subject) {
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.Redirect(c, fiber.StatusForbidden, "/dashboard", scopeNotice, "warning")
		}
	}

	var test models.Test
	if err := tc.DB.Where("experiment_id = ?", experiment.ID).First(&test).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, func(c *fiber.Ctx) error {
				return utils.NotFound(c, "This experiment has no test")
			}
		}
		return 0, nil, func(c *fiber.Ctx) error {
			return utils.InternalServerError(c, "Could not query database")
		}
	}

	return userID, &test, nil
}
