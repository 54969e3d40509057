package model

import "gorm.io/datatypes"

type ChatSession struct {
	BaseModel
	StudentID  uint   `gorm:"index;not null" json:"studentId"`
	SchoolID   *uint  `gorm:"index" json:"schoolId"`
	TextbookID *uint  `json:"textbookId"`
	Title      string `gorm:"size:255" json:"title"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Citation points an assistant answer at the paragraph it drew on.
type Citation struct {
	ParagraphID    uint    `json:"paragraphId"`
	ParagraphTitle string  `json:"paragraphTitle"`
	ChapterID      uint    `json:"chapterId"`
	ChapterTitle   string  `json:"chapterTitle"`
	TextbookID     uint    `json:"textbookId"`
	Score          float64 `json:"score"`
}

type ChatMessage struct {
	Record
	SessionID uint                          `gorm:"index;not null" json:"sessionId"`
	Role      ChatRole                      `gorm:"size:20;not null" json:"role"`
	Content   string                        `gorm:"type:text;not null" json:"content"`
	Citations datatypes.JSONSlice[Citation] `json:"citations,omitempty"`
	Model     string                        `gorm:"size:100" json:"model,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
