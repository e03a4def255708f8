package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

// AdminController backs the admin console: content CRUD over subjects,
// experiments, viva questions, tests and MCQ questions.
type AdminController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAdminController(db *gorm.DB, cfg *config.Config) *AdminController {
	return &AdminController{DB: db, Cfg: cfg}
}

func (a *AdminController) ListSubjects(c *fiber.Ctx) error {
	var subjects []models.Subject
	if err := a.DB.Order("branch asc, semester asc, name asc").Find(&subjects).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.Success(c, fiber.StatusOK, subjects)
}

func (a *AdminController) CreateSubject(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Branch      string `json:"branch"`
		Semester    int    `json:"semester"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Name == "" || input.Branch == "" || input.Semester <= 0 {
		return utils.BadRequest(c, "name, branch and semester are required")
	}

	subject := models.Subject{
		Name:        input.Name,
		Description: input.Description,
		Branch:      input.Branch,
		Semester:    input.Semester,
	}
	if err := a.DB.Create(&subject).Error; err != nil {
		return utils.InternalServerError(c, "Could not create subject")
	}
	return utils.Success(c, fiber.StatusCreated, subject)
}

func (a *AdminController) UpdateSubject(c *fiber.Ctx) error {
	subjectID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid subject ID")
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Branch      string `json:"branch"`
		Semester    int    `json:"semester"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var subject models.Subject
	if err := a.DB.First(&subject, subjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Subject not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if input.Name != "" {
		subject.Name = input.Name
	}
	if input.Description != "" {
		subject.Description = input.Description
	}
	if input.Branch != "" {
		subject.Branch = input.Branch
	}
	if input.Semester > 0 {
		subject.Semester = input.Semester
	}

	if err := a.DB.Save(&subject).Error; err != nil {
		return utils.InternalServerError(c, "Could not update subject")
	}
	return utils.Success(c, fiber.StatusOK, subject)
}

// DeleteSubject cascades to experiments, tests, progress and attempts.
func (a *AdminController) DeleteSubject(c *fiber.Ctx) error {
	subjectID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid subject ID")
	}

	err = a.DB.Transaction(func(tx *gorm.DB) error {
		var experiments []models.Experiment
		if err := tx.Where("subject_id = ?", subjectID).Find(&experiments).Error; err != nil {
			return err
		}
		for _, exp := range experiments {
			if err := deleteExperimentTree(tx, exp.ID); err != nil {
				return err
			}
		}

		// Tests attached to the subject alone have no experiment and are
		// not reached by the experiment walk above.
		var tests []models.Test
		if err := tx.Where("subject_id = ?", subjectID).Find(&tests).Error; err != nil {
			return err
		}
		for _, test := range tests {
			if err := deleteTestTree(tx, test.ID); err != nil {
				return err
			}
		}

		return tx.Delete(&models.Subject{}, subjectID).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not delete subject")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": subjectID})
}

func (a *AdminController) CreateExperiment(c *fiber.Ctx) error {
	var input struct {
		SubjectID           uint   `json:"subject_id"`
		Title               string `json:"title"`
		Objective           string `json:"objective"`
		Theory              string `json:"theory"`
		Procedure           string `json:"procedure"`
		SimulationURL       string `json:"simulation_url"`
		SimulationEmbed     string `json:"simulation_embed"`
		AdditionalResources string `json:"additional_resources"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.SubjectID == 0 || input.Title == "" {
		return utils.BadRequest(c, "subject_id and title are required")
	}

	var subject models.Subject
	if err := a.DB.First(&subject, input.SubjectID).Error; err != nil {
		return utils.NotFound(c, "Subject not found")
	}

	experiment := models.Experiment{
		SubjectID:           input.SubjectID,
		Title:               input.Title,
		Objective:           input.Objective,
		Theory:              input.Theory,
		Procedure:           input.Procedure,
		SimulationURL:       input.SimulationURL,
		SimulationEmbed:     input.SimulationEmbed,
		AdditionalResources: input.AdditionalResources,
	}
	if err := a.DB.Create(&experiment).Error; err != nil {
		return utils.InternalServerError(c, "Could not create experiment")
	}
	return utils.Success(c, fiber.StatusCreated, experiment)
}

func (a *AdminController) UpdateExperiment(c *fiber.Ctx) error {
	experimentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid experiment ID")
	}

	var input struct {
		Title               string `json:"title"`
		Objective           string `json:"objective"`
		Theory              string `json:"theory"`
		Procedure           string `json:"procedure"`
		SimulationURL       string `json:"simulation_url"`
		SimulationEmbed     string `json:"simulation_embed"`
		AdditionalResources string `json:"additional_resources"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var experiment models.Experiment
	if err := a.DB.First(&experiment, experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Experiment not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if input.Title != "" {
		experiment.Title = input.Title
	}
	if input.Objective != "" {
		experiment.Objective = input.Objective
	}
	if input.Theory != "" {
		experiment.Theory = input.Theory
	}
	if input.Procedure != "" {
		experiment.Procedure = input.Procedure
	}
	if input.SimulationURL != "" {
		experiment.SimulationURL = input.SimulationURL
	}
	if input.SimulationEmbed != "" {
		experiment.SimulationEmbed = input.SimulationEmbed
	}
	if input.AdditionalResources != "" {
		experiment.AdditionalResources = input.AdditionalResources
	}

	if err := a.DB.Save(&experiment).Error; err != nil {
		return utils.InternalServerError(c, "Could not update experiment")
	}
	return utils.Success(c, fiber.StatusOK, experiment)
}

func (a *AdminController) AddVivaQuestion(c *fiber.Ctx) error {
	experimentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid experiment ID")
	}

	var input struct {
		QuestionText string `json:"question_text"`
		Answer       string `json:"answer"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.QuestionText == "" {
		return utils.BadRequest(c, "question_text is required")
	}

	var experiment models.Experiment
	if err := a.DB.First(&experiment, experimentID).Error; err != nil {
		return utils.NotFound(c, "Experiment not found")
	}

	var count int64
	a.DB.Model(&models.VivaQuestion{}).Where("experiment_id = ?", experimentID).Count(&count)

	question := models.VivaQuestion{
		ExperimentID:  uint(experimentID),
		QuestionText:  input.QuestionText,
		Answer:        input.Answer,
		SequenceOrder: int(count) + 1,
	}
	if err := a.DB.Create(&question).Error; err != nil {
		return utils.InternalServerError(c, "Could not create question")
	}
	return utils.Success(c, fiber.StatusCreated, question)
}

func (a *AdminController) CreateTest(c *fiber.Ctx) error {
	var input struct {
		SubjectID       uint   `json:"subject_id"`
		ExperimentID    *uint  `json:"experiment_id"`
		Title           string `json:"title"`
		Description     string `json:"description"`
		DurationMinutes int    `json:"duration_minutes"`
		PassingMarks    int    `json:"passing_marks"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.SubjectID == 0 || input.Title == "" {
		return utils.BadRequest(c, "subject_id and title are required")
	}

	var subject models.Subject
	if err := a.DB.First(&subject, input.SubjectID).Error; err != nil {
		return utils.NotFound(c, "Subject not found")
	}

	if input.ExperimentID != nil {
		var experiment models.Experiment
		if err := a.DB.First(&experiment, *input.ExperimentID).Error; err != nil {
			return utils.NotFound(c, "Experiment not found")
		}
		// One test per experiment.
		var existing models.Test
		if err := a.DB.Where("experiment_id = ?", *input.ExperimentID).
			First(&existing).Error; err == nil {
			return utils.BadRequest(c, "Experiment already has a test")
		}
	}

	test := models.Test{
		SubjectID:       input.SubjectID,
		ExperimentID:    input.ExperimentID,
		Title:           input.Title,
		Description:     input.Description,
		DurationMinutes: input.DurationMinutes,
		PassingMarks:    input.PassingMarks,
		TotalMarks:      0,
	}
	if err := a.DB.Create(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not create test")
	}
	return utils.Success(c, fiber.StatusCreated, test)
}

func (a *AdminController) UpdateTest(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var input struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		DurationMinutes *int   `json:"duration_minutes"`
		PassingMarks    *int   `json:"passing_marks"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var test models.Test
	if err := a.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if input.Title != "" {
		test.Title = input.Title
	}
	if input.Description != "" {
		test.Description = input.Description
	}
	if input.DurationMinutes != nil {
		test.DurationMinutes = *input.DurationMinutes
	}
	if input.PassingMarks != nil {
		test.PassingMarks = *input.PassingMarks
	}

	if err := a.DB.Save(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not update test")
	}
	return utils.Success(c, fiber.StatusOK, test)
}

type mcqInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Marks         int      `json:"marks"`
	SequenceOrder int      `json:"sequence_order"`
}

func validateMCQ(options []string, correct int) string {
	if len(options) != 4 {
		return "Exactly four options are required"
	}
	if correct < 1 || correct > 4 {
		return "correct_option must be between 1 and 4"
	}
	return ""
}

// AddMCQQuestion appends a question and recomputes the test's total
// marks.
func (a *AdminController) AddMCQQuestion(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var input mcqInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Text == "" {
		return utils.BadRequest(c, "text is required")
	}
	if msg := validateMCQ(input.Options, input.CorrectOption); msg != "" {
		return utils.BadRequest(c, msg)
	}

	var test models.Test
	if err := a.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	optionsJSON, err := json.Marshal(input.Options)
	if err != nil {
		return utils.InternalServerError(c, "Could not encode options")
	}

	marks := input.Marks
	if marks <= 0 {
		marks = 1
	}
	order := input.SequenceOrder
	if order == 0 {
		var count int64
		a.DB.Model(&models.MCQQuestion{}).Where("test_id = ?", testID).Count(&count)
		order = int(count) + 1
	}

	question := models.MCQQuestion{
		TestID:        uint(testID),
		Text:          input.Text,
		Options:       optionsJSON,
		CorrectOption: input.CorrectOption,
		Marks:         marks,
		SequenceOrder: order,
	}
	if err := a.DB.Create(&question).Error; err != nil {
		return utils.InternalServerError(c, "Could not create question")
	}

	total, err := services.RecalculateTestTotal(a.DB, uint(testID))
	if err != nil {
		return utils.InternalServerError(c, "Could not update total marks")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"question":    question,
		"total_marks": total,
	})
}

func (a *AdminController) UpdateMCQQuestion(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid question ID")
	}

	var input mcqInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var question models.MCQQuestion
	if err := a.DB.Where("id = ? AND test_id = ?", questionID, testID).
		First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Question not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if input.Text != "" {
		question.Text = input.Text
	}
	if input.Options != nil {
		if msg := validateMCQ(input.Options, firstNonZero(input.CorrectOption, question.CorrectOption)); msg != "" {
			return utils.BadRequest(c, msg)
		}
		optionsJSON, err := json.Marshal(input.Options)
		if err != nil {
			return utils.InternalServerError(c, "Could not encode options")
		}
		question.Options = optionsJSON
	}
	if input.CorrectOption >= 1 && input.CorrectOption <= 4 {
		question.CorrectOption = input.CorrectOption
	}
	if input.Marks > 0 {
		question.Marks = input.Marks
	}
	if input.SequenceOrder > 0 {
		question.SequenceOrder = input.SequenceOrder
	}

	if err := a.DB.Save(&question).Error; err != nil {
		return utils.InternalServerError(c, "Could not update question")
	}

	total, err := services.RecalculateTestTotal(a.DB, uint(testID))
	if err != nil {
		return utils.InternalServerError(c, "Could not update total marks")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"question":    question,
		"total_marks": total,
	})
}

func (a *AdminController) DeleteMCQQuestion(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid question ID")
	}

	result := a.DB.Where("id = ? AND test_id = ?", questionID, testID).
		Delete(&models.MCQQuestion{})
	if result.Error != nil {
		return utils.InternalServerError(c, "Could not delete question")
	}
	if result.RowsAffected == 0 {
		return utils.NotFound(c, "Question not found")
	}

	total, err := services.RecalculateTestTotal(a.DB, uint(testID))
	if err != nil {
		return utils.InternalServerError(c, "Could not update total marks")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"deleted":     questionID,
		"total_marks": total,
	})
}

func deleteExperimentTree(tx *gorm.DB, experimentID uint) error {
	if err := tx.Where("experiment_id = ?", experimentID).
		Delete(&models.VivaQuestion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("experiment_id = ?", experimentID).
		Delete(&models.Progress{}).Error; err != nil {
		return err
	}

	var tests []models.Test
	if err := tx.Where("experiment_id = ?", experimentID).Find(&tests).Error; err != nil {
		return err
	}
	for _, test := range tests {
		if err := deleteTestTree(tx, test.ID); err != nil {
			return err
		}
	}

	return tx.Delete(&models.Experiment{}, experimentID).Error
}

func deleteTestTree(tx *gorm.DB, testID uint) error {
	var attempts []models.TestAttempt
	if err := tx.Where("test_id = ?", testID).Find(&attempts).Error; err != nil {
		return err
	}
	for _, attempt := range attempts {
		if err := tx.Where("attempt_id = ?", attempt.ID).
			Delete(&models.TestResponse{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("test_id = ?", testID).
		Delete(&models.TestAttempt{}).Error; err != nil {
		return err
	}
	if err := tx.Where("test_id = ?", testID).
		Delete(&models.MCQQuestion{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Test{}, testID).Error
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
