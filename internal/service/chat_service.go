package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const chatSystemPrompt = `You are a patient study assistant for school students.
Answer using the textbook excerpts below. If they do not cover the question, say so and give a short general hint.
Refer to excerpts by their number in square brackets, e.g. [1].`

// ChatService 基于教材段落检索的问答
type ChatService struct {
	DB          *gorm.DB
	ChatRepo    *repository.ChatRepository
	ContentRepo *repository.ContentRepository
	Embedder    llm.Embedder
	Provider    llm.Provider
	LLM         config.LLMConfig

	mu  sync.RWMutex
	cfg config.RAGConfig
}

func NewChatService(db *gorm.DB, embedder llm.Embedder, provider llm.Provider, llmCfg config.LLMConfig, cfg config.RAGConfig) *ChatService {
	s := &ChatService{
		DB:          db,
		ChatRepo:    repository.NewChatRepository(db),
		ContentRepo: repository.NewContentRepository(db),
		Embedder:    embedder,
		Provider:    provider,
		LLM:         llmCfg,
	}
	s.ApplyConfig(cfg)
	return s
}

func (s *ChatService) ApplyConfig(cfg config.RAGConfig) {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *ChatService) config() config.RAGConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ---- sessions ----

// swagger:model CreateSessionInput
type CreateSessionInput struct {
	TextbookID *uint  `json:"textbookId"`
	Title      string `json:"title" binding:"max=255"`
}

func (s *ChatService) CreateSession(ctx context.Context, actor Actor, in CreateSessionInput) (*model.ChatSession, error) {
	if in.TextbookID != nil {
		tb, err := s.ContentRepo.FindTextbook(ctx, *in.TextbookID)
		if err != nil {
			return nil, err
		}
		if err := actor.ViewContent(tb); err != nil {
			return nil, err
		}
	}
	session := &model.ChatSession{
		StudentID:  actor.UserID,
		SchoolID:   actor.SchoolID,
		TextbookID: in.TextbookID,
		Title:      strings.TrimSpace(in.Title),
	}
	if err := s.ChatRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, actor Actor) ([]model.ChatSession, error) {
	return s.ChatRepo.ListSessions(ctx, actor.UserID)
}

// ownSession 会话只对创建者可见，其他人看到的是不存在
func (s *ChatService) ownSession(ctx context.Context, actor Actor, id uint) (*model.ChatSession, error) {
	session, err := s.ChatRepo.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.StudentID != actor.UserID {
		return nil, util.NewNotFoundError("chat session", id)
	}
	return session, nil
}

// swagger:model SessionDetail
type SessionDetail struct {
	model.ChatSession
	Messages []model.ChatMessage `json:"messages"`
}

func (s *ChatService) GetSession(ctx context.Context, actor Actor, id uint) (*SessionDetail, error) {
	session, err := s.ownSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.ChatRepo.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{ChatSession: *session, Messages: msgs}, nil
}

func (s *ChatService) DeleteSession(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.ownSession(ctx, actor, id); err != nil {
		return err
	}
	return s.ChatRepo.DeleteSession(ctx, id)
}

// ---- retrieval ----

// SearchHit 检索命中的段落及相似度
type SearchHit struct {
	ParagraphID uint    `json:"paragraphId"`
	Score       float64 `json:"score"`
}

// Search 对查询向量化后与段落向量做余弦相似度排序；textbookIDs 为空时不过滤
func (s *ChatService) Search(ctx context.Context, query string, textbookIDs []uint) ([]SearchHit, error) {
	hits := []SearchHit{}
	if s.Embedder == nil || strings.TrimSpace(query) == "" {
		return hits, nil
	}
	cfg := s.config()

	vectors, err := s.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return hits, nil
	}
	qv := vectors[0]

	candidates, err := s.ContentRepo.ListEmbeddings(ctx, textbookIDs)
	if err != nil {
		return nil, err
	}
	modelID := s.Embedder.ModelID()
	for _, c := range candidates {
		// 不同模型的向量不可比
		if c.Model != modelID {
			continue
		}
		score := llm.CosineSimilarity(qv, c.Vector)
		if score < cfg.MinScore {
			continue
		}
		hits = append(hits, SearchHit{ParagraphID: c.ParagraphID, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ParagraphID < hits[j].ParagraphID
	})
	if len(hits) > cfg.TopK {
		hits = hits[:cfg.TopK]
	}
	return hits, nil
}

// searchScope 会话绑定教材时只检索该教材，否则检索当前用户可见的教材
func (s *ChatService) searchScope(ctx context.Context, actor Actor, session *model.ChatSession) ([]uint, error) {
	if session.TextbookID != nil {
		return []uint{*session.TextbookID}, nil
	}
	if actor.IsSuperAdmin() {
		return nil, nil
	}
	scope := actor.SchoolID
	if scope == nil {
		// 无学校的普通用户只能看全局教材
		var none uint
		scope = &none
	}
	textbooks, err := s.ContentRepo.ListTextbooks(ctx, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(textbooks))
	for _, tb := range textbooks {
		ids = append(ids, tb.ID)
	}
	if len(ids) == 0 {
		// 空列表在仓储层表示不过滤
		ids = []uint{0}
	}
	return ids, nil
}

func buildChatContext(hits []SearchHit, locs map[uint]repository.ParagraphLocation) (string, []model.Citation) {
	var b strings.Builder
	citations := make([]model.Citation, 0, len(hits))
	for _, hit := range hits {
		loc, ok := locs[hit.ParagraphID]
		if !ok {
			continue
		}
		citations = append(citations, model.Citation{
			ParagraphID:    loc.ParagraphID,
			ParagraphTitle: loc.ParagraphTitle,
			ChapterID:      loc.ChapterID,
			ChapterTitle:   loc.ChapterTitle,
			TextbookID:     loc.TextbookID,
			Score:          hit.Score,
		})
		fmt.Fprintf(&b, "[%d] %s / %s\n%s\n\n", len(citations), loc.ChapterTitle, loc.ParagraphTitle, loc.Content)
	}
	return b.String(), citations
}

// ---- ask ----

// swagger:model AskInput
type AskInput struct {
	Question string `json:"question" binding:"required,max=4000"`
}

// swagger:model ChatReply
type ChatReply struct {
	Question *model.ChatMessage `json:"question"`
	Answer   *model.ChatMessage `json:"answer"`
}

// Ask 检索相关段落、带上最近的对话历史请求模型，问答两条消息在模型成功后一并保存
func (s *ChatService) Ask(ctx context.Context, actor Actor, sessionID uint, in AskInput) (*ChatReply, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, util.NewValidationError("question", "must not be empty")
	}
	session, err := s.ownSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	cfg := s.config()

	scope, err := s.searchScope(ctx, actor, session)
	if err != nil {
		return nil, err
	}
	hits, err := s.Search(ctx, question, scope)
	if err != nil {
		monitoring.ChatAnswers.WithLabelValues("search_error").Inc()
		return nil, err
	}
	ids := make([]uint, len(hits))
	for i, h := range hits {
		ids[i] = h.ParagraphID
	}
	locs, err := s.ContentRepo.LocateParagraphs(ctx, ids)
	if err != nil {
		return nil, err
	}
	excerpts, citations := buildChatContext(hits, locs)

	history, err := s.ChatRepo.RecentMessages(ctx, sessionID, cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == model.ChatRoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	system := chatSystemPrompt
	if excerpts != "" {
		system += "\n\nTextbook excerpts:\n\n" + excerpts
	} else {
		system += "\n\nNo textbook excerpts matched this question."
	}

	maxTokens := s.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	resp, err := generate(ctx, s.Provider, s.LLM.Timeout, "chat", llm.Request{
		System:      system,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: s.LLM.Temperature,
	})
	if err != nil {
		monitoring.ChatAnswers.WithLabelValues("provider_error").Inc()
		return nil, fmt.Errorf("chat answer: %w", err)
	}

	reply := &ChatReply{
		Question: &model.ChatMessage{SessionID: sessionID, Role: model.ChatRoleUser, Content: question},
		Answer: &model.ChatMessage{
			SessionID: sessionID,
			Role:      model.ChatRoleAssistant,
			Content:   strings.TrimSpace(resp.Content),
			Citations: citations,
			Model:     s.Provider.ModelID(),
		},
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ChatRepo.WithTx(tx)
		if err := repo.CreateMessages(ctx, reply.Question, reply.Answer); err != nil {
			return err
		}
		if session.Title == "" {
			return tx.Model(&model.ChatSession{}).Where("id = ?", sessionID).
				Update("title", sessionTitle(question)).Error
		}
		return repo.TouchSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	result := "answered"
	if len(citations) == 0 {
		result = "no_context"
	}
	monitoring.ChatAnswers.WithLabelValues(result).Inc()
	logger.Log.Debug("助手回答完成",
		zap.Uint("sessionID", sessionID),
		zap.Int("citations", len(citations)),
		zap.Int("history", len(history)))
	return reply, nil
}

// sessionTitle 取问题前 40 个字符作为会话标题
func sessionTitle(question string) string {
	const max = 40
	if utf8.RuneCountInString(question) <= max {
		return question
	}
	return string([]rune(question)[:max]) + "…"
}
