package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, utils.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "testsecret",
		DefaultBranch:       "CSE",
		DefaultSemester:     1,
		SessionTTLHours:     72,
		AttemptGraceMinutes: 10,
	}
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createSubject(t *testing.T, db *gorm.DB, branch string, semester int) *models.Subject {
	t.Helper()

	subject := models.Subject{
		Name:     "Physics Lab",
		Branch:   branch,
		Semester: semester,
	}
	require.NoError(t, db.Create(&subject).Error)
	return &subject
}

func createExperiment(t *testing.T, db *gorm.DB, subjectID uint) *models.Experiment {
	t.Helper()

	experiment := models.Experiment{
		SubjectID: subjectID,
		Title:     "Ohm's Law",
		Objective: "Verify V = IR",
	}
	require.NoError(t, db.Create(&experiment).Error)
	return &experiment
}

// createTestWithQuestions builds a test whose questions all have
// CorrectOption 1, with the given marks, and TotalMarks kept in sync.
func createTestWithQuestions(t *testing.T, db *gorm.DB, experimentID *uint, subjectID uint, marks []int, passing int) *models.Test {
	t.Helper()

	test := models.Test{
		SubjectID:    subjectID,
		ExperimentID: experimentID,
		Title:        "Post-lab test",
		PassingMarks: passing,
	}
	require.NoError(t, db.Create(&test).Error)

	options, err := json.Marshal([]string{"A", "B", "C", "D"})
	require.NoError(t, err)

	for i, m := range marks {
		question := models.MCQQuestion{
			TestID:        test.ID,
			Text:          fmt.Sprintf("Question %d", i+1),
			Options:       options,
			CorrectOption: 1,
			Marks:         m,
			SequenceOrder: i + 1,
		}
		require.NoError(t, db.Create(&question).Error)
	}

	total, err := RecalculateTestTotal(db, test.ID)
	require.NoError(t, err)
	test.TotalMarks = total
	return &test
}
