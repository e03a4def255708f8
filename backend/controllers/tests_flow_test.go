package controllers_test

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlab-server/backend/models"
)

func TestTestFlowEndToEnd(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	user, token := createStudent(t, db, cfg, "examinee", true)

	subject := seedSubject(t, db, cfg.DefaultBranch, cfg.DefaultSemester)
	experiment := seedExperiment(t, db, subject.ID)
	test := seedTest(t, db, subject.ID, &experiment.ID, []int{2, 3}, 3)

	testPath := fmt.Sprintf("/api/experiments/%d/test", experiment.ID)

	// Begin creates a started attempt with the question set, correct
	// answers withheld.
	resp, body := doRequest(t, app, "GET", testPath, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	attempt := body["attempt"].(map[string]interface{})
	assert.Equal(t, string(models.AttemptStarted), attempt["status"])
	assert.Equal(t, float64(test.TotalMarks), attempt["total_marks"])
	ref := attempt["ref"].(string)

	questions := body["questions"].([]interface{})
	require.Len(t, questions, 2)
	for _, q := range questions {
		entry := q.(map[string]interface{})
		_, leaked := entry["correct_option"]
		assert.False(t, leaked)
		assert.Equal(t, float64(0), entry["selected_option"])
	}

	// A second begin resumes the same attempt.
	_, body = doRequest(t, app, "GET", testPath, token, nil)
	attempt = body["attempt"].(map[string]interface{})
	assert.Equal(t, ref, attempt["ref"])

	// Submit: first question right, second wrong. 2 of 5 is below the
	// passing mark.
	q1 := questions[0].(map[string]interface{})
	q2 := questions[1].(map[string]interface{})
	resp, body = doRequest(t, app, "POST", testPath, token, fiber.Map{
		"answers": []fiber.Map{
			{"question_id": uint(q1["id"].(float64)), "selected_option": 1},
			{"question_id": uint(q2["id"].(float64)), "selected_option": 2},
		},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, fmt.Sprintf("/experiment/%d/test/result", experiment.ID), body["redirect"])
	assert.Equal(t, "warning", body["level"])

	submitted := body["attempt"].(map[string]interface{})
	assert.Equal(t, float64(2), submitted["score"])
	assert.Equal(t, false, submitted["is_passed"])

	// Failing does not complete the experiment.
	var progressCount int64
	db.Model(&models.Progress{}).
		Where("user_id = ? AND experiment_id = ? AND status = ?",
			user.ID, experiment.ID, models.ProgressCompleted).
		Count(&progressCount)
	assert.Equal(t, int64(0), progressCount)

	// Results render the completed attempt with answers revealed.
	resp, body = doRequest(t, app, "GET", testPath+"/result", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := body["attempt"].(map[string]interface{})
	assert.Equal(t, ref, result["ref"])
	assert.Equal(t, float64(1), result["correct"])
	assert.Equal(t, float64(1), result["incorrect"])
	for _, q := range body["questions"].([]interface{}) {
		entry := q.(map[string]interface{})
		assert.Equal(t, float64(1), entry["correct_option"])
	}

	// Retake and pass; the experiment is marked complete this time.
	_, body = doRequest(t, app, "GET", testPath, token, nil)
	retake := body["attempt"].(map[string]interface{})
	assert.NotEqual(t, ref, retake["ref"])

	resp, body = doRequest(t, app, "POST", testPath, token, fiber.Map{
		"answers": []fiber.Map{
			{"question_id": uint(q1["id"].(float64)), "selected_option": 1},
			{"question_id": uint(q2["id"].(float64)), "selected_option": 1},
		},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["level"])
	submitted = body["attempt"].(map[string]interface{})
	assert.Equal(t, float64(5), submitted["score"])
	assert.Equal(t, true, submitted["is_passed"])

	var progress models.Progress
	require.NoError(t, db.Where("user_id = ? AND experiment_id = ?",
		user.ID, experiment.ID).First(&progress).Error)
	assert.Equal(t, models.ProgressCompleted, progress.Status)
}

func TestSubmitWithoutStartedAttempt(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	_, token := createStudent(t, db, cfg, "hasty", true)

	subject := seedSubject(t, db, cfg.DefaultBranch, cfg.DefaultSemester)
	experiment := seedExperiment(t, db, subject.ID)
	seedTest(t, db, subject.ID, &experiment.ID, []int{1}, 1)

	testPath := fmt.Sprintf("/api/experiments/%d/test", experiment.ID)
	resp, body := doRequest(t, app, "POST", testPath, token, fiber.Map{
		"answers": []fiber.Map{},
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/experiment/%d/test", experiment.ID), body["redirect"])
}

func TestResultWithoutCompletedAttempt(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	_, token := createStudent(t, db, cfg, "curious", true)

	subject := seedSubject(t, db, cfg.DefaultBranch, cfg.DefaultSemester)
	experiment := seedExperiment(t, db, subject.ID)
	seedTest(t, db, subject.ID, &experiment.ID, []int{1}, 1)

	resp, body := doRequest(t, app, "GET",
		fmt.Sprintf("/api/experiments/%d/test/result", experiment.ID), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/experiment/%d/test", experiment.ID), body["redirect"])
}

func TestBeginWithoutTest(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	_, token := createStudent(t, db, cfg, "testless", true)

	subject := seedSubject(t, db, cfg.DefaultBranch, cfg.DefaultSemester)
	experiment := seedExperiment(t, db, subject.ID)

	resp, _ := doRequest(t, app, "GET",
		fmt.Sprintf("/api/experiments/%d/test", experiment.ID), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBeginTestToleratesMalformedOptions(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	_, token := createStudent(t, db, cfg, "unlucky", true)

	subject := seedSubject(t, db, cfg.DefaultBranch, cfg.DefaultSemester)
	experiment := seedExperiment(t, db, subject.ID)
	test := seedTest(t, db, subject.ID, &experiment.ID, []int{1}, 1)
	require.NoError(t, db.Model(&models.MCQQuestion{}).
		Where("test_id = ?", test.ID).
		Update("options", []byte(`not json`)).Error)

	resp, body := doRequest(t, app, "GET",
		fmt.Sprintf("/api/experiments/%d/test", experiment.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	questions := body["questions"].([]interface{})
	require.Len(t, questions, 1)
	assert.Nil(t, questions[0].(map[string]interface{})["options"])
}

func TestOutOfScopeTestDenied(t *testing.T) {
	app, db, cfg := setupTestApp(t)
	_, token := createStudent(t, db, cfg, "outsider", true)

	subject := seedSubject(t, db, "ECE", 3)
	experiment := seedExperiment(t, db, subject.ID)
	seedTest(t, db, subject.ID, &experiment.ID, []int{1}, 1)

	resp, body := doRequest(t, app, "GET",
		fmt.Sprintf("/api/experiments/%d/test", experiment.ID), token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "/dashboard", body["redirect"])
}
