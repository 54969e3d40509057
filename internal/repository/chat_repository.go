package repository

import (
	"context"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) WithTx(tx *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: tx}
}

func (r *ChatRepository) CreateSession(ctx context.Context, s *model.ChatSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *ChatRepository) FindSession(ctx context.Context, id uint) (*model.ChatSession, error) {
	var s model.ChatSession
	if err := r.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "chat session", id)
	}
	return &s, nil
}

func (r *ChatRepository) ListSessions(ctx context.Context, studentID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("updated_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *ChatRepository) TouchSession(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&model.ChatSession{}).Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// DeleteSession 先删消息再删会话
func (r *ChatRepository) DeleteSession(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.ChatSession{}, id).Error
	})
}

func (r *ChatRepository) CreateMessages(ctx context.Context, msgs ...*model.ChatMessage) error {
	for _, m := range msgs {
		if err := r.DB.WithContext(ctx).Create(m).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, sessionID uint) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&msgs).Error
	return msgs, err
}

// RecentMessages 最近 n 条消息，按时间正序返回
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID uint, n int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	if n <= 0 {
		return msgs, nil
	}
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("id DESC").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
