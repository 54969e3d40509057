package model

import (
	"time"

	"gorm.io/datatypes"
)

type HomeworkStatus string

const (
	HomeworkDraft     HomeworkStatus = "draft"
	HomeworkPublished HomeworkStatus = "published"
	HomeworkClosed    HomeworkStatus = "closed"
)

// swagger:model Homework
type Homework struct {
	BaseModel
	SchoolID          uint           `gorm:"index;not null" json:"schoolId"`
	ClassID           uint           `gorm:"index;not null" json:"classId"`
	TeacherID         uint           `gorm:"index;not null" json:"teacherId"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	Status            HomeworkStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`
	DueDate           time.Time      `json:"dueDate"`
	CloseAt           *time.Time     `json:"closeAt,omitempty"`
	LatePenaltyFactor float64        `gorm:"default:1" json:"latePenaltyFactor"`
	AllowLate         bool           `gorm:"default:true" json:"allowLate"`
	AIGradingEnabled  bool           `gorm:"default:false" json:"aiGradingEnabled"`
	PublishedAt       *time.Time     `json:"publishedAt,omitempty"`
	ClosedAt          *time.Time     `json:"closedAt,omitempty"`
}

func (Homework) TableName() string {
	return "homeworks"
}

// swagger:model HomeworkTask
type HomeworkTask struct {
	BaseModel
	HomeworkID   uint   `gorm:"index;not null" json:"homeworkId"`
	ParagraphID  *uint  `gorm:"index" json:"paragraphId"`
	Title        string `gorm:"size:255;not null" json:"title"`
	Instructions string `gorm:"type:text" json:"instructions"`
	Position     int    `gorm:"default:0" json:"position"`
}

func (HomeworkTask) TableName() string {
	return "homework_tasks"
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type BloomLevel string

const (
	BloomRemember   BloomLevel = "remember"
	BloomUnderstand BloomLevel = "understand"
	BloomApply      BloomLevel = "apply"
	BloomAnalyze    BloomLevel = "analyze"
	BloomEvaluate   BloomLevel = "evaluate"
	BloomCreate     BloomLevel = "create"
)

var BloomLevels = []BloomLevel{BloomRemember, BloomUnderstand, BloomApply, BloomAnalyze, BloomEvaluate, BloomCreate}

// swagger:model HomeworkTaskQuestion
type HomeworkTaskQuestion struct {
	BaseModel
	TaskID           uint                        `gorm:"index;not null" json:"taskId"`
	QuestionType     QuestionType                `gorm:"size:30;not null" json:"questionType"`
	Text             string                      `gorm:"type:text;not null" json:"text"`
	Options          datatypes.JSONSlice[Option] `json:"options,omitempty"`
	CorrectOptionIDs datatypes.JSONSlice[string] `json:"correctOptionIds,omitempty"`
	AcceptedAnswers  datatypes.JSONSlice[string] `json:"acceptedAnswers,omitempty"`
	GradingRubric    string                      `gorm:"type:text" json:"gradingRubric,omitempty"`
	Explanation      string                      `gorm:"type:text" json:"explanation,omitempty"`
	Points           float64                     `gorm:"default:1" json:"points"`
	Difficulty       Difficulty                  `gorm:"size:20" json:"difficulty,omitempty"`
	BloomLevel       BloomLevel                  `gorm:"size:20" json:"bloomLevel,omitempty"`
	AIGenerated      bool                        `gorm:"default:false" json:"aiGenerated"`
	Position         int                         `gorm:"default:0" json:"position"`
}

func (HomeworkTaskQuestion) TableName() string {
	return "homework_task_questions"
}

type SubmissionStatus string

const (
	SubmissionNotStarted  SubmissionStatus = "not_started"
	SubmissionInProgress  SubmissionStatus = "in_progress"
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionNeedsReview SubmissionStatus = "needs_review"
	SubmissionGraded      SubmissionStatus = "graded"
)

// swagger:model StudentTaskSubmission
type StudentTaskSubmission struct {
	Record
	StudentID         uint             `gorm:"uniqueIndex:idx_submission_student_task;not null" json:"studentId"`
	TaskID            uint             `gorm:"uniqueIndex:idx_submission_student_task;index;not null" json:"taskId"`
	HomeworkID        uint             `gorm:"index;not null" json:"homeworkId"`
	Status            SubmissionStatus `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	RawScore          *float64         `json:"rawScore"`
	FinalScore        *float64         `json:"finalScore"`
	MaxScore          float64          `json:"maxScore"`
	IsLate            bool             `gorm:"default:false" json:"isLate"`
	LatePenaltyFactor float64          `gorm:"default:1" json:"latePenaltyFactor"`
	PenaltyApplied    bool             `gorm:"default:false" json:"penaltyApplied"`
	StartedAt         time.Time        `json:"startedAt"`
	SubmittedAt       *time.Time       `json:"submittedAt"`
	GradedAt          *time.Time       `json:"gradedAt"`
}

func (StudentTaskSubmission) TableName() string {
	return "student_task_submissions"
}

type GradedBy string

const (
	GradedByAuto    GradedBy = "auto"
	GradedByAI      GradedBy = "ai"
	GradedByTeacher GradedBy = "teacher"
)

// swagger:model StudentTaskAnswer
type StudentTaskAnswer struct {
	Record
	SubmissionID      uint                        `gorm:"uniqueIndex:idx_answer_submission_question;not null" json:"submissionId"`
	QuestionID        uint                        `gorm:"uniqueIndex:idx_answer_submission_question;not null" json:"questionId"`
	SelectedOptionIDs datatypes.JSONSlice[string] `json:"selectedOptionIds"`
	AnswerText        string                      `gorm:"type:text" json:"answerText"`
	IsCorrect         *bool                       `json:"isCorrect"`
	Score             *float64                    `json:"score"`
	GradedBy          GradedBy                    `gorm:"size:20" json:"gradedBy,omitempty"`
	AIFeedback        string                      `gorm:"type:text" json:"aiFeedback,omitempty"`
	AIConfidence      *float64                    `json:"aiConfidence,omitempty"`
	AISuggestedScore  *float64                    `json:"aiSuggestedScore,omitempty"`
	TeacherFeedback   string                      `gorm:"type:text" json:"teacherFeedback,omitempty"`
	GradedAt          *time.Time                  `json:"gradedAt"`
}

func (StudentTaskAnswer) TableName() string {
	return "student_task_answers"
}

// Graded reports whether the answer carries a final verdict.
func (a StudentTaskAnswer) Graded() bool {
	return a.Score != nil
}
