package repository

import (
	"context"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) WithTx(tx *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: tx}
}

// ---- textbooks ----

func (r *ContentRepository) CreateTextbook(ctx context.Context, tb *model.Textbook) error {
	return r.DB.WithContext(ctx).Create(tb).Error
}

func (r *ContentRepository) FindTextbook(ctx context.Context, id uint) (*model.Textbook, error) {
	var tb model.Textbook
	if err := r.DB.WithContext(ctx).First(&tb, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "textbook", id)
	}
	return &tb, nil
}

// ListTextbooks 返回全局教材和指定学校的教材；schoolID 为 nil 时返回全部
func (r *ContentRepository) ListTextbooks(ctx context.Context, schoolID *uint) ([]model.Textbook, error) {
	var list []model.Textbook
	query := r.DB.WithContext(ctx).Model(&model.Textbook{})
	if schoolID != nil {
		query = query.Where("school_id IS NULL OR school_id = ?", *schoolID)
	}
	err := query.Order("grade_level, title").Find(&list).Error
	return list, err
}

func (r *ContentRepository) UpdateTextbook(ctx context.Context, tb *model.Textbook) error {
	return r.DB.WithContext(ctx).Save(tb).Error
}

// ---- chapters ----

func (r *ContentRepository) CreateChapter(ctx context.Context, ch *model.Chapter) error {
	return r.DB.WithContext(ctx).Create(ch).Error
}

func (r *ContentRepository) FindChapter(ctx context.Context, id uint) (*model.Chapter, error) {
	var ch model.Chapter
	if err := r.DB.WithContext(ctx).First(&ch, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "chapter", id)
	}
	return &ch, nil
}

func (r *ContentRepository) ListChapters(ctx context.Context, textbookID uint) ([]model.Chapter, error) {
	var list []model.Chapter
	err := r.DB.WithContext(ctx).Where("textbook_id = ?", textbookID).Order("number, id").Find(&list).Error
	return list, err
}

func (r *ContentRepository) FindChaptersByIDs(ctx context.Context, ids []uint) ([]model.Chapter, error) {
	var list []model.Chapter
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("textbook_id, number").Find(&list).Error
	return list, err
}

func (r *ContentRepository) UpdateChapter(ctx context.Context, ch *model.Chapter) error {
	return r.DB.WithContext(ctx).Save(ch).Error
}

// ---- paragraphs ----

func (r *ContentRepository) CreateParagraph(ctx context.Context, p *model.Paragraph) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *ContentRepository) FindParagraph(ctx context.Context, id uint) (*model.Paragraph, error) {
	var p model.Paragraph
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "paragraph", id)
	}
	return &p, nil
}

func (r *ContentRepository) FindParagraphsByIDs(ctx context.Context, ids []uint) ([]model.Paragraph, error) {
	var list []model.Paragraph
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *ContentRepository) ListParagraphs(ctx context.Context, chapterID uint) ([]model.Paragraph, error) {
	var list []model.Paragraph
	err := r.DB.WithContext(ctx).Where("chapter_id = ?", chapterID).Order("number, id").Find(&list).Error
	return list, err
}

// ListParagraphIDsOfTextbook 用于重建索引
func (r *ContentRepository) ListParagraphIDsOfTextbook(ctx context.Context, textbookID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Paragraph{}).
		Joins("JOIN chapters ch ON ch.id = paragraphs.chapter_id AND ch.deleted_at IS NULL").
		Where("ch.textbook_id = ?", textbookID).
		Order("paragraphs.id").
		Pluck("paragraphs.id", &ids).Error
	return ids, err
}

func (r *ContentRepository) ListAllParagraphIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Paragraph{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (r *ContentRepository) UpdateParagraph(ctx context.Context, p *model.Paragraph) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

// ParagraphLocation 段落及其所属章节、教材
type ParagraphLocation struct {
	ParagraphID    uint
	ParagraphTitle string
	ChapterID      uint
	ChapterTitle   string
	TextbookID     uint
	Content        string
}

func (r *ContentRepository) LocateParagraphs(ctx context.Context, ids []uint) (map[uint]ParagraphLocation, error) {
	out := make(map[uint]ParagraphLocation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []ParagraphLocation
	err := r.DB.WithContext(ctx).Table("paragraphs p").
		Select("p.id AS paragraph_id, p.title AS paragraph_title, ch.id AS chapter_id, ch.title AS chapter_title, ch.textbook_id AS textbook_id, p.content AS content").
		Joins("JOIN chapters ch ON ch.id = p.chapter_id").
		Where("p.id IN ? AND p.deleted_at IS NULL", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ParagraphID] = row
	}
	return out, nil
}

// ---- embeddings ----

func (r *ContentRepository) FindEmbedding(ctx context.Context, paragraphID uint) (*model.ParagraphEmbedding, error) {
	var emb model.ParagraphEmbedding
	if err := r.DB.WithContext(ctx).Where("paragraph_id = ?", paragraphID).First(&emb).Error; err != nil {
		return nil, util.TranslateDBError(err, "paragraph embedding", paragraphID)
	}
	return &emb, nil
}

// UpsertEmbedding 以 paragraph_id 为键覆盖向量
func (r *ContentRepository) UpsertEmbedding(ctx context.Context, emb *model.ParagraphEmbedding) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paragraph_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"textbook_id", "model", "content_hash", "vector", "updated_at"}),
	}).Create(emb).Error
}

// ListEmbeddings 返回候选向量；textbookIDs 为空时不过滤
func (r *ContentRepository) ListEmbeddings(ctx context.Context, textbookIDs []uint) ([]model.ParagraphEmbedding, error) {
	var list []model.ParagraphEmbedding
	query := r.DB.WithContext(ctx).Model(&model.ParagraphEmbedding{})
	if len(textbookIDs) > 0 {
		query = query.Where("textbook_id IN ?", textbookIDs)
	}
	err := query.Find(&list).Error
	return list, err
}

// ---- cascade deletes ----

// DeleteParagraph 按依赖顺序删除段落及其派生数据
func (r *ContentRepository) DeleteParagraph(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Paragraph{}, id).Error; err != nil {
			return util.TranslateDBError(err, "paragraph", id)
		}
		return deleteParagraphs(tx, []uint{id})
	})
}

func (r *ContentRepository) DeleteChapter(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Chapter{}, id).Error; err != nil {
			return util.TranslateDBError(err, "chapter", id)
		}
		return deleteChapters(tx, []uint{id})
	})
}

func (r *ContentRepository) DeleteTextbook(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Textbook{}, id).Error; err != nil {
			return util.TranslateDBError(err, "textbook", id)
		}

		var chapterIDs []uint
		if err := tx.Model(&model.Chapter{}).Where("textbook_id = ?", id).Pluck("id", &chapterIDs).Error; err != nil {
			return err
		}
		if err := deleteChapters(tx, chapterIDs); err != nil {
			return err
		}
		if err := tx.Model(&model.ChatSession{}).Where("textbook_id = ?", id).Update("textbook_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Textbook{}, id).Error
	})
}

func deleteChapters(tx *gorm.DB, chapterIDs []uint) error {
	if len(chapterIDs) == 0 {
		return nil
	}

	var paragraphIDs []uint
	if err := tx.Unscoped().Model(&model.Paragraph{}).Where("chapter_id IN ?", chapterIDs).Pluck("id", &paragraphIDs).Error; err != nil {
		return err
	}
	if err := deleteParagraphs(tx, paragraphIDs); err != nil {
		return err
	}

	// 章节级测试（paragraph_id 为空）
	var testIDs []uint
	if err := tx.Unscoped().Model(&model.Test{}).Where("chapter_id IN ?", chapterIDs).Pluck("id", &testIDs).Error; err != nil {
		return err
	}
	if err := deleteTests(tx, testIDs); err != nil {
		return err
	}

	if err := tx.Where("chapter_id IN ?", chapterIDs).Delete(&model.ChapterMastery{}).Error; err != nil {
		return err
	}
	if err := tx.Where("unit_type = ? AND unit_id IN ?", model.UnitChapter, chapterIDs).Delete(&model.MasteryHistory{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id IN ?", chapterIDs).Delete(&model.Chapter{}).Error
}

func deleteParagraphs(tx *gorm.DB, paragraphIDs []uint) error {
	if len(paragraphIDs) == 0 {
		return nil
	}

	if err := tx.Where("paragraph_id IN ?", paragraphIDs).Delete(&model.ParagraphEmbedding{}).Error; err != nil {
		return err
	}
	if err := tx.Where("paragraph_id IN ?", paragraphIDs).Delete(&model.ParagraphMastery{}).Error; err != nil {
		return err
	}
	if err := tx.Where("unit_type = ? AND unit_id IN ?", model.UnitParagraph, paragraphIDs).Delete(&model.MasteryHistory{}).Error; err != nil {
		return err
	}

	var testIDs []uint
	if err := tx.Unscoped().Model(&model.Test{}).Where("paragraph_id IN ?", paragraphIDs).Pluck("id", &testIDs).Error; err != nil {
		return err
	}
	if err := deleteTests(tx, testIDs); err != nil {
		return err
	}

	// 作业任务保留，仅解除与段落的关联
	if err := tx.Model(&model.HomeworkTask{}).Where("paragraph_id IN ?", paragraphIDs).Update("paragraph_id", nil).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id IN ?", paragraphIDs).Delete(&model.Paragraph{}).Error
}

func deleteTests(tx *gorm.DB, testIDs []uint) error {
	if len(testIDs) == 0 {
		return nil
	}

	var attemptIDs []uint
	if err := tx.Model(&model.TestAttempt{}).Where("test_id IN ?", testIDs).Pluck("id", &attemptIDs).Error; err != nil {
		return err
	}
	if len(attemptIDs) > 0 {
		if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&model.TestAttemptAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", attemptIDs).Delete(&model.TestAttempt{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Unscoped().Where("test_id IN ?", testIDs).Delete(&model.TestQuestion{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id IN ?", testIDs).Delete(&model.Test{}).Error
}
