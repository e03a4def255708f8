package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vlab-server/backend/models"
)

var (
	// ErrAlreadySubmitted: the attempt was already scored; callers redirect
	// to the results view instead of re-scoring.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrNoStartedAttempt: submission arrived with no attempt in progress.
	ErrNoStartedAttempt = errors.New("no attempt in progress")
	// ErrNoCompletedAttempt: results requested before any submission.
	ErrNoCompletedAttempt = errors.New("no completed attempt")
)

// AttemptQuestion pairs a question with the student's recorded selection
// so a resumed attempt re-renders prior answers. SelectedOption is 0 when
// unanswered.
type AttemptQuestion struct {
	Question       models.MCQQuestion
	SelectedOption int
}

// ResultDetail is one row of a results view.
type ResultDetail struct {
	Question       models.MCQQuestion
	Answered       bool
	SelectedOption int
	IsCorrect      bool
}

// BeginOrResumeAttempt returns the student's started attempt for a test,
// creating one when none exists. A started attempt older than the test
// duration plus grace is marked abandoned and a fresh attempt opens.
// TotalMarks is snapshotted from the test at creation time.
func BeginOrResumeAttempt(db *gorm.DB, userID uint, test *models.Test, grace time.Duration) (*models.TestAttempt, []AttemptQuestion, error) {
	var attempt models.TestAttempt

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND test_id = ? AND status = ?",
			userID, test.ID, models.AttemptStarted).First(&attempt).Error
		switch {
		case err == nil:
			if !attemptExpired(test, &attempt, grace) {
				return nil
			}
			attempt.Status = models.AttemptAbandoned
			if err := tx.Save(&attempt).Error; err != nil {
				return err
			}
			return createAttempt(tx, userID, test, &attempt)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return createAttempt(tx, userID, test, &attempt)
		default:
			return err
		}
	})
	if err != nil {
		return nil, nil, err
	}

	questions, err := attemptQuestions(db, test.ID, attempt.ID)
	if err != nil {
		return nil, nil, err
	}
	return &attempt, questions, nil
}

// createAttempt inserts a fresh started attempt. A partial unique index on
// (user_id, test_id) WHERE status='started' backs the at-most-one-started
// invariant at the storage layer; on a lost race we adopt the winner's row.
func createAttempt(tx *gorm.DB, userID uint, test *models.Test, out *models.TestAttempt) error {
	fresh := models.TestAttempt{
		Ref:        uuid.NewString(),
		UserID:     userID,
		TestID:     test.ID,
		Status:     models.AttemptStarted,
		TotalMarks: test.TotalMarks,
		Score:      0,
		StartedAt:  time.Now(),
	}
	if err := tx.Create(&fresh).Error; err != nil {
		var existing models.TestAttempt
		if ferr := tx.Where("user_id = ? AND test_id = ? AND status = ?",
			userID, test.ID, models.AttemptStarted).First(&existing).Error; ferr == nil {
			*out = existing
			return nil
		}
		return err
	}
	*out = fresh
	return nil
}

func attemptExpired(test *models.Test, attempt *models.TestAttempt, grace time.Duration) bool {
	if test.DurationMinutes <= 0 {
		return false
	}
	deadline := attempt.StartedAt.Add(time.Duration(test.DurationMinutes)*time.Minute + grace)
	return time.Now().After(deadline)
}

func attemptQuestions(db *gorm.DB, testID, attemptID uint) ([]AttemptQuestion, error) {
	var questions []models.MCQQuestion
	if err := db.Where("test_id = ?", testID).
		Order("sequence_order asc").Find(&questions).Error; err != nil {
		return nil, err
	}

	selected, err := responsesByQuestion(db, attemptID)
	if err != nil {
		return nil, err
	}

	result := make([]AttemptQuestion, 0, len(questions))
	for _, q := range questions {
		aq := AttemptQuestion{Question: q}
		if r, ok := selected[q.ID]; ok {
			aq.SelectedOption = r.SelectedOption
		}
		result = append(result, aq)
	}
	return result, nil
}

func responsesByQuestion(db *gorm.DB, attemptID uint) (map[uint]models.TestResponse, error) {
	var responses []models.TestResponse
	if err := db.Where("attempt_id = ?", attemptID).Find(&responses).Error; err != nil {
		return nil, err
	}
	byQuestion := make(map[uint]models.TestResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}
	return byQuestion, nil
}

// SubmitAttempt scores the student's started attempt for a test and marks
// it completed, in one transaction. Unanswered questions score nothing and
// record no response. On a pass the linked experiment, if any, is marked
// completed. answers maps question id to the selected 1-based option.
func SubmitAttempt(db *gorm.DB, userID uint, test *models.Test, answers map[uint]int) (*models.TestAttempt, error) {
	var attempt models.TestAttempt

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND test_id = ? AND status = ?",
			userID, test.ID, models.AttemptStarted).First(&attempt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var count int64
			tx.Model(&models.TestAttempt{}).
				Where("user_id = ? AND test_id = ? AND status = ?",
					userID, test.ID, models.AttemptCompleted).Count(&count)
			if count > 0 {
				return ErrAlreadySubmitted
			}
			return ErrNoStartedAttempt
		}
		if err != nil {
			return err
		}

		var questions []models.MCQQuestion
		if err := tx.Where("test_id = ?", test.ID).
			Order("sequence_order asc").Find(&questions).Error; err != nil {
			return err
		}

		score := 0
		for _, q := range questions {
			selected, answered := answers[q.ID]
			if !answered {
				continue
			}

			correct := selected == q.CorrectOption
			if correct {
				score += q.Marks
			}

			response := models.TestResponse{
				AttemptID:      attempt.ID,
				QuestionID:     q.ID,
				SelectedOption: selected,
				IsCorrect:      correct,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns(
					[]string{"selected_option", "is_correct", "updated_at"}),
			}).Create(&response).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		attempt.Status = models.AttemptCompleted
		attempt.Score = score
		if attempt.TotalMarks > 0 {
			attempt.Percentage = float64(score) / float64(attempt.TotalMarks) * 100
		} else {
			attempt.Percentage = 0
		}
		attempt.IsPassed = score >= test.PassingMarks
		attempt.CompletedAt = &now
		attempt.TimeTakenSecs = int(now.Sub(attempt.StartedAt).Seconds())

		if err := tx.Save(&attempt).Error; err != nil {
			return err
		}

		if attempt.IsPassed && test.ExperimentID != nil {
			if _, err := MarkExperimentCompleted(tx, userID, *test.ExperimentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// LatestCompletedAttempt fetches the most recent completed attempt for a
// (student, test) pair.
func LatestCompletedAttempt(db *gorm.DB, userID, testID uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := db.Where("user_id = ? AND test_id = ? AND status = ?",
		userID, testID, models.AttemptCompleted).
		Order("completed_at desc").First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCompletedAttempt
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// AttemptResult assembles the per-question breakdown of a completed
// attempt, in question order, with correct/incorrect counts over the
// recorded responses.
func AttemptResult(db *gorm.DB, attempt *models.TestAttempt) ([]ResultDetail, int, int, error) {
	var questions []models.MCQQuestion
	if err := db.Where("test_id = ?", attempt.TestID).
		Order("sequence_order asc").Find(&questions).Error; err != nil {
		return nil, 0, 0, err
	}

	responses, err := responsesByQuestion(db, attempt.ID)
	if err != nil {
		return nil, 0, 0, err
	}

	details := make([]ResultDetail, 0, len(questions))
	correct, incorrect := 0, 0
	for _, q := range questions {
		d := ResultDetail{Question: q}
		if r, ok := responses[q.ID]; ok {
			d.Answered = true
			d.SelectedOption = r.SelectedOption
			d.IsCorrect = r.IsCorrect
			if r.IsCorrect {
				correct++
			} else {
				incorrect++
			}
		}
		details = append(details, d)
	}
	return details, correct, incorrect, nil
}

// RecalculateTestTotal resets a test's TotalMarks to the sum of its
// question marks. Called after every question create/update/delete.
func RecalculateTestTotal(db *gorm.DB, testID uint) (int, error) {
	var total int
	if err := db.Model(&models.MCQQuestion{}).
		Where("test_id = ?", testID).
		Select("COALESCE(SUM(marks), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Test{}).Where("id = ?", testID).
		Update("total_marks", total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
