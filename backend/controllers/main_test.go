package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/middleware"
	"vlab-server/backend/models"
	"vlab-server/backend/routes"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, utils.Migrate(db))

	cfg := &config.Config{
		JWTSecret:           "testsecret",
		ServerPort:          "8080",
		DefaultBranch:       "CSE",
		DefaultSemester:     1,
		SessionTTLHours:     72,
		AttemptGraceMinutes: 10,
	}

	app := fiber.New()
	app.Use(middleware.ProfileRequired(db, cfg))
	app.Use(middleware.TrackActivity(db, cfg))
	routes.SetupRoutes(app, db, cfg)

	return app, db, cfg
}

// createStudent makes a user with a lazily created profile and returns a
// valid token. When complete is true the required profile fields are
// filled so the access gate lets the student through.
func createStudent(t *testing.T, db *gorm.DB, cfg *config.Config, username string, complete bool) (*models.User, string) {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)

	profile, err := services.GetOrCreateProfile(db, cfg, user.ID)
	require.NoError(t, err)
	if complete {
		profile.FullName = "Test Student"
		profile.RollNo = "42"
		profile.ContactNumber = "9876543210"
		require.NoError(t, services.SaveProfile(db, profile))
	}

	token, err := utils.GenerateJWTToken(user.ID, cfg)
	require.NoError(t, err)
	return &user, token
}

func createAdmin(t *testing.T, db *gorm.DB, cfg *config.Config, username string) (*models.User, string) {
	t.Helper()

	user, token := createStudent(t, db, cfg, username, false)
	profile, err := services.GetOrCreateProfile(db, cfg, user.ID)
	require.NoError(t, err)
	profile.Role = models.RoleAdmin
	require.NoError(t, services.SaveProfile(db, profile))
	return user, token
}

func seedSubject(t *testing.T, db *gorm.DB, branch string, semester int) *models.Subject {
	t.Helper()

	subject := models.Subject{
		Name:     "Physics Lab",
		Branch:   branch,
		Semester: semester,
	}
	require.NoError(t, db.Create(&subject).Error)
	return &subject
}

func seedExperiment(t *testing.T, db *gorm.DB, subjectID uint) *models.Experiment {
	t.Helper()

	experiment := models.Experiment{
		SubjectID: subjectID,
		Title:     "Ohm's Law",
		Objective: "Verify V = IR",
		Theory:    "# Theory\n\nOhm's law relates voltage and current.",
		Procedure: "1. Connect the circuit.\n2. Measure.",
	}
	require.NoError(t, db.Create(&experiment).Error)
	return &experiment
}

func seedTest(t *testing.T, db *gorm.DB, subjectID uint, experimentID *uint, marks []int, passing int) *models.Test {
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
		require.NoError(t, db.Create(&models.MCQQuestion{
			TestID:        test.ID,
			Text:          fmt.Sprintf("Question %d", i+1),
			Options:       options,
			CorrectOption: 1,
			Marks:         m,
			SequenceOrder: i + 1,
		}).Error)
	}

	total, err := services.RecalculateTestTotal(db, test.ID)
	require.NoError(t, err)
	test.TotalMarks = total
	return &test
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}
