package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"go.uber.org/zap"
)

// IndexService 维护段落向量索引
type IndexService struct {
	ContentRepo *repository.ContentRepository
	Embedder    llm.Embedder
}

func NewIndexService(contentRepo *repository.ContentRepository, embedder llm.Embedder) *IndexService {
	return &IndexService{ContentRepo: contentRepo, Embedder: embedder}
}

// indexText 参与向量化的段落文本
func indexText(loc repository.ParagraphLocation) string {
	return strings.TrimSpace(loc.ChapterTitle + "\n" + loc.ParagraphTitle + "\n" + loc.Content)
}

func contentHash(modelID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// IndexParagraphs 为段落生成向量，内容未变化的段落跳过，返回实际写入数量
func (s *IndexService) IndexParagraphs(ctx context.Context, ids []uint) (int, error) {
	if s == nil || s.Embedder == nil || len(ids) == 0 {
		return 0, nil
	}
	locs, err := s.ContentRepo.LocateParagraphs(ctx, ids)
	if err != nil {
		return 0, err
	}

	modelID := s.Embedder.ModelID()
	var pending []repository.ParagraphLocation
	var texts, hashes []string
	for _, id := range ids {
		loc, ok := locs[id]
		if !ok {
			continue
		}
		text := indexText(loc)
		hash := contentHash(modelID, text)

		existing, err := s.ContentRepo.FindEmbedding(ctx, id)
		var nf *util.NotFoundError
		switch {
		case err == nil && existing.ContentHash == hash:
			continue
		case err != nil && !errors.As(err, &nf):
			return 0, err
		}
		pending = append(pending, loc)
		texts = append(texts, text)
		hashes = append(hashes, hash)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := s.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed paragraphs: %w", err)
	}
	for i, loc := range pending {
		emb := &model.ParagraphEmbedding{
			ParagraphID: loc.ParagraphID,
			TextbookID:  loc.TextbookID,
			Model:       modelID,
			ContentHash: hashes[i],
			Vector:      vectors[i],
		}
		if err := s.ContentRepo.UpsertEmbedding(ctx, emb); err != nil {
			return i, err
		}
	}
	logger.Log.Info("段落索引完成", zap.Int("indexed", len(pending)), zap.Int("requested", len(ids)))
	return len(pending), nil
}

// IndexParagraphAsync 内容变更后的增量索引，失败只记录日志
func (s *IndexService) IndexParagraphAsync(id uint) {
	if s == nil || s.Embedder == nil {
		return
	}
	go func() {
		if _, err := s.IndexParagraphs(context.Background(), []uint{id}); err != nil {
			logger.Log.Error("段落索引失败", zap.Uint("paragraphID", id), zap.Error(err))
		}
	}()
}

// Reindex 重建某教材或全部教材的索引，batch 控制单次向量化条数
func (s *IndexService) Reindex(ctx context.Context, textbookID uint, batch int) (int, error) {
	var ids []uint
	var err error
	if textbookID > 0 {
		ids, err = s.ContentRepo.ListParagraphIDsOfTextbook(ctx, textbookID)
	} else {
		ids, err = s.ContentRepo.ListAllParagraphIDs(ctx)
	}
	if err != nil {
		return 0, err
	}
	if batch <= 0 {
		batch = 32
	}

	total := 0
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		n, err := s.IndexParagraphs(ctx, ids[start:end])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
