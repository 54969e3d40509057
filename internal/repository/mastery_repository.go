package repository

import (
	"context"
	"errors"

	"ai_mentor_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MasteryRepository struct {
	DB *gorm.DB
}

func NewMasteryRepository(db *gorm.DB) *MasteryRepository {
	return &MasteryRepository{DB: db}
}

func (r *MasteryRepository) WithTx(tx *gorm.DB) *MasteryRepository {
	return &MasteryRepository{DB: tx}
}

// FindChapter 返回 nil, nil 表示尚未评级
func (r *MasteryRepository) FindChapter(ctx context.Context, studentID, chapterID uint) (*model.ChapterMastery, error) {
	var m model.ChapterMastery
	err := r.DB.WithContext(ctx).Where("student_id = ? AND chapter_id = ?", studentID, chapterID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MasteryRepository) FindParagraph(ctx context.Context, studentID, paragraphID uint) (*model.ParagraphMastery, error) {
	var m model.ParagraphMastery
	err := r.DB.WithContext(ctx).Where("student_id = ? AND paragraph_id = ?", studentID, paragraphID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MasteryRepository) UpsertChapter(ctx context.Context, m *model.ChapterMastery) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "chapter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "average_score", "attempts_considered", "last_attempt_id", "updated_at"}),
	}).Create(m).Error
}

func (r *MasteryRepository) UpsertParagraph(ctx context.Context, m *model.ParagraphMastery) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "paragraph_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "average_score", "attempts_considered", "last_attempt_id", "updated_at"}),
	}).Create(m).Error
}

// DeleteChapter 删除评级，用于纠错后已无有效作答的情况
func (r *MasteryRepository) DeleteChapter(ctx context.Context, studentID, chapterID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ? AND chapter_id = ?", studentID, chapterID).
		Delete(&model.ChapterMastery{}).Error
}

func (r *MasteryRepository) DeleteParagraph(ctx context.Context, studentID, paragraphID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ? AND paragraph_id = ?", studentID, paragraphID).
		Delete(&model.ParagraphMastery{}).Error
}

func (r *MasteryRepository) AppendHistory(ctx context.Context, h *model.MasteryHistory) error {
	return r.DB.WithContext(ctx).Create(h).Error
}

func (r *MasteryRepository) ListHistory(ctx context.Context, studentID uint, unitType model.UnitType, unitID uint) ([]model.MasteryHistory, error) {
	query := r.DB.WithContext(ctx).Where("student_id = ?", studentID)
	if unitType != "" {
		query = query.Where("unit_type = ?", unitType)
	}
	if unitID > 0 {
		query = query.Where("unit_id = ?", unitID)
	}
	var rows []model.MasteryHistory
	err := query.Order("recorded_at, id").Find(&rows).Error
	return rows, err
}

func (r *MasteryRepository) ListChaptersOfStudent(ctx context.Context, studentID uint) ([]model.ChapterMastery, error) {
	var rows []model.ChapterMastery
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("chapter_id").Find(&rows).Error
	return rows, err
}

func (r *MasteryRepository) ListParagraphsOfStudent(ctx context.Context, studentID uint, chapterID uint) ([]model.ParagraphMastery, error) {
	query := r.DB.WithContext(ctx).Table("paragraph_masteries pm").Select("pm.*").
		Where("pm.student_id = ?", studentID)
	if chapterID > 0 {
		query = query.Joins("JOIN paragraphs p ON p.id = pm.paragraph_id").Where("p.chapter_id = ?", chapterID)
	}
	var rows []model.ParagraphMastery
	err := query.Order("pm.paragraph_id").Scan(&rows).Error
	return rows, err
}

// ListChapterMasteries 某章节下一批学生的评级
func (r *MasteryRepository) ListChapterMasteries(ctx context.Context, chapterID uint, studentIDs []uint) ([]model.ChapterMastery, error) {
	var rows []model.ChapterMastery
	if len(studentIDs) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).Where("chapter_id = ? AND student_id IN ?", chapterID, studentIDs).
		Order("student_id").Find(&rows).Error
	return rows, err
}
