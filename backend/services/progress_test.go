package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlab-server/backend/models"
)

func TestEnsureProgressCreatesInProgress(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "eager")
	subject := createSubject(t, db, "CSE", 1)
	experiment := createExperiment(t, db, subject.ID)

	progress, err := EnsureProgress(db, user.ID, experiment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressInProgress, progress.Status)
	assert.Nil(t, progress.CompletedAt)
	assert.False(t, progress.LastAccessed.IsZero())
}

func TestEnsureProgressIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "repeat")
	subject := createSubject(t, db, "CSE", 1)
	experiment := createExperiment(t, db, subject.ID)

	first, err := EnsureProgress(db, user.ID, experiment.ID)
	require.NoError(t, err)

	second, err := EnsureProgress(db, user.ID, experiment.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.False(t, second.LastAccessed.Before(first.LastAccessed))

	var count int64
	db.Model(&models.Progress{}).
		Where("user_id = ? AND experiment_id = ?", user.ID, experiment.ID).
		Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEnsureProgressDoesNotDemoteCompleted(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "finisher")
	subject := createSubject(t, db, "CSE", 1)
	experiment := createExperiment(t, db, subject.ID)

	completed, err := MarkExperimentCompleted(db, user.ID, experiment.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressCompleted, completed.Status)

	progress, err := EnsureProgress(db, user.ID, experiment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, progress.Status)
	assert.NotNil(t, progress.CompletedAt)
}

func TestMarkCompletedTimestampWriteOnce(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "twice")
	subject := createSubject(t, db, "CSE", 1)
	experiment := createExperiment(t, db, subject.ID)

	first, err := MarkExperimentCompleted(db, user.ID, experiment.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)
	original := *first.CompletedAt

	time.Sleep(10 * time.Millisecond)

	second, err := MarkExperimentCompleted(db, user.ID, experiment.ID)
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, second.CompletedAt.Equal(original),
		"re-completion must not move the original completion timestamp")
}

func TestMarkCompletedFromInProgress(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "gradual")
	subject := createSubject(t, db, "CSE", 1)
	experiment := createExperiment(t, db, subject.ID)

	_, err := EnsureProgress(db, user.ID, experiment.ID)
	require.NoError(t, err)

	progress, err := MarkExperimentCompleted(db, user.ID, experiment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, progress.Status)
	assert.NotNil(t, progress.CompletedAt)

	var count int64
	db.Model(&models.Progress{}).
		Where("user_id = ? AND experiment_id = ?", user.ID, experiment.ID).
		Count(&count)
	assert.EqualValues(t, 1, count)
}
