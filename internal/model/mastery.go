package model

import "time"

type MasteryTier string

const (
	TierA MasteryTier = "A"
	TierB MasteryTier = "B"
	TierC MasteryTier = "C"
)

type UnitType string

const (
	UnitChapter   UnitType = "chapter"
	UnitParagraph UnitType = "paragraph"
)

// swagger:model ChapterMastery
type ChapterMastery struct {
	Record
	StudentID          uint        `gorm:"uniqueIndex:idx_chapter_mastery;not null" json:"studentId"`
	ChapterID          uint        `gorm:"uniqueIndex:idx_chapter_mastery;index;not null" json:"chapterId"`
	Tier               MasteryTier `gorm:"size:1;not null" json:"tier"`
	AverageScore       float64     `json:"averageScore"`
	AttemptsConsidered int         `json:"attemptsConsidered"`
	LastAttemptID      uint        `json:"lastAttemptId"`
}

func (ChapterMastery) TableName() string {
	return "chapter_masteries"
}

// swagger:model ParagraphMastery
type ParagraphMastery struct {
	Record
	StudentID          uint        `gorm:"uniqueIndex:idx_paragraph_mastery;not null" json:"studentId"`
	ParagraphID        uint        `gorm:"uniqueIndex:idx_paragraph_mastery;index;not null" json:"paragraphId"`
	Tier               MasteryTier `gorm:"size:1;not null" json:"tier"`
	AverageScore       float64     `json:"averageScore"`
	AttemptsConsidered int         `json:"attemptsConsidered"`
	LastAttemptID      uint        `json:"lastAttemptId"`
}

func (ParagraphMastery) TableName() string {
	return "paragraph_masteries"
}

// MasteryHistory rows are only ever inserted.
type MasteryHistory struct {
	ID           uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID    uint         `gorm:"index:idx_history_unit;not null" json:"studentId"`
	UnitType     UnitType     `gorm:"size:20;index:idx_history_unit;not null" json:"unitType"`
	UnitID       uint         `gorm:"index:idx_history_unit;not null" json:"unitId"`
	PreviousTier *MasteryTier `gorm:"size:1" json:"previousTier"`
	NewTier      MasteryTier  `gorm:"size:1;not null" json:"newTier"`
	AverageScore float64      `json:"averageScore"`
	AttemptID    uint         `json:"attemptId"`
	RecordedAt   time.Time    `gorm:"index;not null" json:"recordedAt"`
}

func (MasteryHistory) TableName() string {
	return "mastery_histories"
}
