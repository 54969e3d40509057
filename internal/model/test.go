package model

import (
	"time"

	"gorm.io/datatypes"
)

type TestPurpose string

const (
	PurposeDiagnostic TestPurpose = "diagnostic"
	PurposeFormative  TestPurpose = "formative"
	PurposeSummative  TestPurpose = "summative"
	PurposePractice   TestPurpose = "practice"
)

func (p TestPurpose) Valid() bool {
	switch p {
	case PurposeDiagnostic, PurposeFormative, PurposeSummative, PurposePractice:
		return true
	}
	return false
}

// swagger:model Test
type Test struct {
	BaseModel
	SchoolID    *uint       `gorm:"index" json:"schoolId"`
	ChapterID   uint        `gorm:"index;not null" json:"chapterId"`
	ParagraphID *uint       `gorm:"index" json:"paragraphId"`
	Title       string      `gorm:"size:255;not null" json:"title"`
	Purpose     TestPurpose `gorm:"size:20;not null;default:'formative'" json:"purpose"`
	IsActive    bool        `gorm:"default:true" json:"isActive"`
	CreatorID   uint        `gorm:"index" json:"creatorId"`
}

func (Test) TableName() string {
	return "tests"
}

type TestQuestion struct {
	BaseModel
	TestID           uint                        `gorm:"index;not null" json:"testId"`
	QuestionType     QuestionType                `gorm:"size:30;not null" json:"questionType"`
	Text             string                      `gorm:"type:text;not null" json:"text"`
	Options          datatypes.JSONSlice[Option] `json:"options,omitempty"`
	CorrectOptionIDs datatypes.JSONSlice[string] `json:"-"`
	AcceptedAnswers  datatypes.JSONSlice[string] `json:"-"`
	Points           float64                     `gorm:"default:1" json:"points"`
	Position         int                         `gorm:"default:0" json:"position"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// swagger:model TestAttempt
type TestAttempt struct {
	Record
	StudentID        uint          `gorm:"index:idx_attempt_student_test;not null" json:"studentId"`
	TestID           uint          `gorm:"index:idx_attempt_student_test;not null" json:"testId"`
	SchoolID         *uint         `gorm:"index" json:"schoolId"`
	AttemptNumber    int           `gorm:"not null" json:"attemptNumber"`
	Score            *float64      `json:"score"`
	Status           AttemptStatus `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	StartedAt        time.Time     `json:"startedAt"`
	SubmittedAt      *time.Time    `json:"submittedAt"`
	GradedAt         *time.Time    `gorm:"index" json:"gradedAt"`
	CorrectedAt      *time.Time    `json:"correctedAt,omitempty"`
	CorrectionReason string        `gorm:"type:text" json:"correctionReason,omitempty"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

type TestAttemptAnswer struct {
	Record
	AttemptID         uint                        `gorm:"uniqueIndex:idx_attempt_question;not null" json:"attemptId"`
	QuestionID        uint                        `gorm:"uniqueIndex:idx_attempt_question;not null" json:"questionId"`
	SelectedOptionIDs datatypes.JSONSlice[string] `json:"selectedOptionIds"`
	AnswerText        string                      `gorm:"type:text" json:"answerText"`
	IsCorrect         *bool                       `json:"isCorrect"`
	Score             *float64                    `json:"score"`
}

func (TestAttemptAnswer) TableName() string {
	return "test_attempt_answers"
}
