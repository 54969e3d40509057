package service

import (
	"context"
	"io"
	"strings"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"go.uber.org/zap"
)

// swagger:model TextbookInput
type TextbookInput struct {
	Title      string `json:"title" binding:"required,notblank"`
	Subject    string `json:"subject"`
	GradeLevel int    `json:"gradeLevel" binding:"min=0,max=12"`
	// Global 仅超级管理员可创建全局教材
	Global   bool  `json:"global"`
	SchoolID *uint `json:"schoolId"`
}

// swagger:model ChapterInput
type ChapterInput struct {
	Title       string `json:"title" binding:"required,notblank"`
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// swagger:model ParagraphInput
type ParagraphInput struct {
	Title   string `json:"title" binding:"required,notblank"`
	Number  int    `json:"number"`
	Content string `json:"content" binding:"required"`
	Summary string `json:"summary"`
}

// ContentService 教材、章节、段落管理
type ContentService struct {
	ContentRepo *repository.ContentRepository
	Indexer     *IndexService
	Storage     *StorageService
}

func NewContentService(contentRepo *repository.ContentRepository, indexer *IndexService, storage *StorageService) *ContentService {
	return &ContentService{ContentRepo: contentRepo, Indexer: indexer, Storage: storage}
}

func (s *ContentService) CreateTextbook(ctx context.Context, actor Actor, in TextbookInput) (*model.Textbook, error) {
	tb := &model.Textbook{
		Title:      strings.TrimSpace(in.Title),
		Subject:    strings.TrimSpace(in.Subject),
		GradeLevel: in.GradeLevel,
	}
	switch {
	case in.Global:
		tb.SchoolID = nil
	case actor.IsSuperAdmin():
		if in.SchoolID == nil {
			return nil, util.NewValidationError("schoolId", "required unless global")
		}
		tb.SchoolID = in.SchoolID
	default:
		tb.SchoolID = actor.SchoolID
	}
	if err := actor.EditContent(tb); err != nil {
		return nil, err
	}
	if err := s.ContentRepo.CreateTextbook(ctx, tb); err != nil {
		return nil, err
	}
	return tb, nil
}

func (s *ContentService) ListTextbooks(ctx context.Context, actor Actor) ([]model.Textbook, error) {
	return s.ContentRepo.ListTextbooks(ctx, actor.SchoolScope())
}

func (s *ContentService) GetTextbook(ctx context.Context, actor Actor, id uint) (*model.Textbook, error) {
	tb, err := s.ContentRepo.FindTextbook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.ViewContent(tb); err != nil {
		return nil, err
	}
	return tb, nil
}

func (s *ContentService) editableTextbook(ctx context.Context, actor Actor, id uint) (*model.Textbook, error) {
	tb, err := s.ContentRepo.FindTextbook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EditContent(tb); err != nil {
		return nil, err
	}
	return tb, nil
}

func (s *ContentService) UpdateTextbook(ctx context.Context, actor Actor, id uint, in TextbookInput) (*model.Textbook, error) {
	tb, err := s.editableTextbook(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	tb.Title = strings.TrimSpace(in.Title)
	tb.Subject = strings.TrimSpace(in.Subject)
	tb.GradeLevel = in.GradeLevel
	if err := s.ContentRepo.UpdateTextbook(ctx, tb); err != nil {
		return nil, err
	}
	return tb, nil
}

// UploadCover 上传教材封面图片
func (s *ContentService) UploadCover(ctx context.Context, actor Actor, id uint, filename string, reader io.ReadSeeker, size int64) (*model.Textbook, error) {
	tb, err := s.editableTextbook(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	mimeType, err := util.DetectUploadType(reader, util.MimeImage)
	if err != nil {
		return nil, err
	}

	key := ObjectKey("covers", filename)
	url, err := s.Storage.Upload(ctx, key, reader, size, mimeType)
	if err != nil {
		return nil, err
	}
	oldKey := tb.CoverKey
	tb.CoverURL, tb.CoverKey = url, key
	if err := s.ContentRepo.UpdateTextbook(ctx, tb); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	s.removeObject(ctx, oldKey)
	return tb, nil
}

// removeObject 清理不再引用的文件，失败只记日志
func (s *ContentService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Storage.Delete(ctx, key); err != nil {
		logger.Log.Warn("删除存储文件失败", zap.String("key", key), zap.Error(err))
	}
}

func (s *ContentService) DeleteTextbook(ctx context.Context, actor Actor, id uint) error {
	tb, err := s.editableTextbook(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.ContentRepo.DeleteTextbook(ctx, id); err != nil {
		return err
	}
	s.removeObject(ctx, tb.CoverKey)
	logger.Log.Info("删除教材", zap.Uint("textbookID", id), zap.Uint("by", actor.UserID))
	return nil
}

// ---- chapters ----

func (s *ContentService) CreateChapter(ctx context.Context, actor Actor, textbookID uint, in ChapterInput) (*model.Chapter, error) {
	if _, err := s.editableTextbook(ctx, actor, textbookID); err != nil {
		return nil, err
	}
	ch := &model.Chapter{
		TextbookID:  textbookID,
		Title:       strings.TrimSpace(in.Title),
		Number:      in.Number,
		Description: in.Description,
	}
	if err := s.ContentRepo.CreateChapter(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ContentService) ListChapters(ctx context.Context, actor Actor, textbookID uint) ([]model.Chapter, error) {
	if _, err := s.GetTextbook(ctx, actor, textbookID); err != nil {
		return nil, err
	}
	return s.ContentRepo.ListChapters(ctx, textbookID)
}

// chapterWithTextbook 返回章节及其所属教材
func (s *ContentService) chapterWithTextbook(ctx context.Context, chapterID uint) (*model.Chapter, *model.Textbook, error) {
	ch, err := s.ContentRepo.FindChapter(ctx, chapterID)
	if err != nil {
		return nil, nil, err
	}
	tb, err := s.ContentRepo.FindTextbook(ctx, ch.TextbookID)
	if err != nil {
		return nil, nil, err
	}
	return ch, tb, nil
}

func (s *ContentService) UpdateChapter(ctx context.Context, actor Actor, id uint, in ChapterInput) (*model.Chapter, error) {
	ch, tb, err := s.chapterWithTextbook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EditContent(tb); err != nil {
		return nil, err
	}
	ch.Title = strings.TrimSpace(in.Title)
	ch.Number = in.Number
	ch.Description = in.Description
	if err := s.ContentRepo.UpdateChapter(ctx, ch); err != nil {
		return nil, err
	}
	s.reindexChapter(ctx, ch.ID)
	return ch, nil
}

func (s *ContentService) DeleteChapter(ctx context.Context, actor Actor, id uint) error {
	_, tb, err := s.chapterWithTextbook(ctx, id)
	if err != nil {
		return err
	}
	if err := actor.EditContent(tb); err != nil {
		return err
	}
	return s.ContentRepo.DeleteChapter(ctx, id)
}

// ---- paragraphs ----

func (s *ContentService) CreateParagraph(ctx context.Context, actor Actor, chapterID uint, in ParagraphInput) (*model.Paragraph, error) {
	_, tb, err := s.chapterWithTextbook(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if err := actor.EditContent(tb); err != nil {
		return nil, err
	}
	p := &model.Paragraph{
		ChapterID: chapterID,
		Title:     strings.TrimSpace(in.Title),
		Number:    in.Number,
		Content:   in.Content,
		Summary:   in.Summary,
	}
	if err := s.ContentRepo.CreateParagraph(ctx, p); err != nil {
		return nil, err
	}
	s.Indexer.IndexParagraphAsync(p.ID)
	return p, nil
}

func (s *ContentService) ListParagraphs(ctx context.Context, actor Actor, chapterID uint) ([]model.Paragraph, error) {
	_, tb, err := s.chapterWithTextbook(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if err := actor.ViewContent(tb); err != nil {
		return nil, err
	}
	return s.ContentRepo.ListParagraphs(ctx, chapterID)
}

// paragraphWithTextbook 返回段落及其所属教材
func (s *ContentService) paragraphWithTextbook(ctx context.Context, id uint) (*model.Paragraph, *model.Textbook, error) {
	p, err := s.ContentRepo.FindParagraph(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	_, tb, err := s.chapterWithTextbook(ctx, p.ChapterID)
	if err != nil {
		return nil, nil, err
	}
	return p, tb, nil
}

func (s *ContentService) GetParagraph(ctx context.Context, actor Actor, id uint) (*model.Paragraph, error) {
	p, tb, err := s.paragraphWithTextbook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.ViewContent(tb); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ContentService) UpdateParagraph(ctx context.Context, actor Actor, id uint, in ParagraphInput) (*model.Paragraph, error) {
	p, tb, err := s.paragraphWithTextbook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EditContent(tb); err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(in.Title)
	p.Number = in.Number
	p.Content = in.Content
	p.Summary = in.Summary
	if err := s.ContentRepo.UpdateParagraph(ctx, p); err != nil {
		return nil, err
	}
	s.Indexer.IndexParagraphAsync(p.ID)
	return p, nil
}

func (s *ContentService) DeleteParagraph(ctx context.Context, actor Actor, id uint) error {
	_, tb, err := s.paragraphWithTextbook(ctx, id)
	if err != nil {
		return err
	}
	if err := actor.EditContent(tb); err != nil {
		return err
	}
	return s.ContentRepo.DeleteParagraph(ctx, id)
}

// reindexChapter 章节标题参与向量文本，改名后需要重建段落索引
func (s *ContentService) reindexChapter(ctx context.Context, chapterID uint) {
	paragraphs, err := s.ContentRepo.ListParagraphs(ctx, chapterID)
	if err != nil {
		logger.Log.Error("读取章节段落失败", zap.Uint("chapterID", chapterID), zap.Error(err))
		return
	}
	for _, p := range paragraphs {
		s.Indexer.IndexParagraphAsync(p.ID)
	}
}
