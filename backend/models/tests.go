package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptCompleted AttemptStatus = "completed"
	AttemptAbandoned AttemptStatus = "abandoned"
)

// Test belongs to a subject and optionally to exactly one experiment.
// TotalMarks is recomputed whenever its questions change; PassingMarks
// is a fixed threshold independent of the total.
type Test struct {
	gorm.Model
	SubjectID       uint  `gorm:"not null;index"`
	ExperimentID    *uint `gorm:"uniqueIndex"`
	Title           string
	Description     string
	DurationMinutes int `gorm:"default:0"` // 0 means untimed
	TotalMarks      int `gorm:"default:0"`
	PassingMarks    int `gorm:"default:0"`
	Questions       []MCQQuestion
}

type MCQQuestion struct {
	gorm.Model
	TestID        uint           `gorm:"not null;index"`
	Text          string         `gorm:"not null"`
	Options       datatypes.JSON // JSON array of four option strings
	CorrectOption int            // 1-based index into Options
	Marks         int            `gorm:"default:1"`
	SequenceOrder int
}

// TestAttempt is one sitting of a test. Retakes create new rows; at most
// one row per (user, test) may be in the started state at a time.
// TotalMarks is snapshotted at start so later question edits never
// rescore historical attempts.
type TestAttempt struct {
	gorm.Model
	Ref           string        `gorm:"size:36;uniqueIndex"`
	UserID        uint          `gorm:"not null;index:idx_attempt_user_test"`
	TestID        uint          `gorm:"not null;index:idx_attempt_user_test"`
	Status        AttemptStatus `gorm:"default:started;index"`
	TotalMarks    int
	Score         int
	Percentage    float64
	IsPassed      bool
	StartedAt     time.Time
	CompletedAt   *time.Time
	TimeTakenSecs int
	Responses     []TestResponse `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

type TestResponse struct {
	gorm.Model
	AttemptID      uint `gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID     uint `gorm:"not null;uniqueIndex:idx_attempt_question"`
	SelectedOption int
	IsCorrect      bool
}
