package models

import "gorm.io/gorm"

// Subject groups experiments for one branch+semester. Students only see
// subjects matching their profile scope exactly.
type Subject struct {
	gorm.Model
	Name        string `gorm:"not null"`
	Description string
	Branch      string `gorm:"index:idx_subject_scope"`
	Semester    int    `gorm:"index:idx_subject_scope"`
	Experiments []Experiment
}

type Experiment struct {
	gorm.Model
	SubjectID           uint   `gorm:"not null;index"`
	Title               string `gorm:"not null"`
	Objective           string
	Theory              string // markdown
	Procedure           string // markdown
	SimulationURL       string
	SimulationEmbed     string
	AdditionalResources string
	VivaQuestions       []VivaQuestion
}

// VivaQuestion is free-text practice content attached to an experiment,
// distinct from the scored MCQQuestion of a Test.
type VivaQuestion struct {
	gorm.Model
	ExperimentID  uint `gorm:"not null;index"`
	QuestionText  string
	Answer        string
	SequenceOrder int
}
