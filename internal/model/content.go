package model

import "gorm.io/datatypes"

// swagger:model Textbook
type Textbook struct {
	BaseModel
	// nil SchoolID marks a global textbook visible to every school
	SchoolID   *uint  `gorm:"index" json:"schoolId"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Subject    string `gorm:"size:100" json:"subject"`
	GradeLevel int    `json:"gradeLevel"`
	CoverURL   string `gorm:"size:255" json:"coverUrl"`
	CoverKey   string `gorm:"size:255" json:"-"`
}

func (Textbook) TableName() string {
	return "textbooks"
}

// swagger:model Chapter
type Chapter struct {
	BaseModel
	TextbookID  uint   `gorm:"index;not null" json:"textbookId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Number      int    `gorm:"default:0" json:"number"`
	Description string `gorm:"type:text" json:"description"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// swagger:model Paragraph
type Paragraph struct {
	BaseModel
	ChapterID uint   `gorm:"index;not null" json:"chapterId"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Number    int    `gorm:"default:0" json:"number"`
	Content   string `gorm:"type:text" json:"content"`
	Summary   string `gorm:"type:text" json:"summary"`
}

func (Paragraph) TableName() string {
	return "paragraphs"
}

type ParagraphEmbedding struct {
	Record
	ParagraphID uint                         `gorm:"uniqueIndex;not null" json:"paragraphId"`
	TextbookID  uint                         `gorm:"index;not null" json:"textbookId"`
	Model       string                       `gorm:"size:100" json:"model"`
	ContentHash string                       `gorm:"size:64" json:"contentHash"`
	Vector      datatypes.JSONSlice[float32] `json:"-"`
}

func (ParagraphEmbedding) TableName() string {
	return "paragraph_embeddings"
}
