package service

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photosynthesis = "Photosynthesis is the process in plants that turns light, water and carbon dioxide into sugar and oxygen."

// indexedChat 写入两段主题不同的段落并建立索引
func indexedChat(t *testing.T, h *harness, provider llm.Provider) *ChatService {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.db.Model(&model.Paragraph{}).Where("id = ?", h.f.Paragraphs[0].ID).Update("content", photosynthesis).Error)
	require.NoError(t, h.db.Model(&model.Paragraph{}).Where("id = ?", h.f.Paragraphs[1].ID).
		Update("content", "A linear equation has one unknown x and degree one.").Error)

	embedder := llm.NewHashEmbedder(1024)
	indexer := NewIndexService(repository.NewContentRepository(h.db), embedder)
	n, err := indexer.IndexParagraphs(ctx, []uint{h.f.Paragraphs[0].ID, h.f.Paragraphs[1].ID})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	return NewChatService(h.db, embedder, provider, config.LLMConfig{}, h.cfg.RAG)
}

func TestAskCitesRetrievedParagraphs(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	provider := llm.NewMockProvider(
		llm.MockResponse{Content: "Plants make sugar from light [1]."},
		llm.MockResponse{Content: "Chlorophyll absorbs the light [1]."},
	)
	chat := indexedChat(t, h, provider)
	student := h.student(0)

	session, err := chat.CreateSession(ctx, student, CreateSessionInput{})
	require.NoError(t, err)

	reply, err := chat.Ask(ctx, student, session.ID, AskInput{Question: "What is photosynthesis in plants?"})
	require.NoError(t, err)
	assert.Equal(t, "Plants make sugar from light [1].", reply.Answer.Content)
	require.NotEmpty(t, reply.Answer.Citations)
	top := reply.Answer.Citations[0]
	assert.Equal(t, h.f.Paragraphs[0].ID, top.ParagraphID)
	assert.Equal(t, h.f.Chapter.ID, top.ChapterID)
	assert.Equal(t, h.f.Textbook.ID, top.TextbookID)
	assert.Greater(t, top.Score, 0.2)
	assert.Equal(t, "mock", reply.Answer.Model)

	require.Equal(t, 1, provider.CallCount())
	assert.Contains(t, provider.Calls[0].System, photosynthesis)
	require.Len(t, provider.Calls[0].Messages, 1)

	_, err = chat.Ask(ctx, student, session.ID, AskInput{Question: "Why are plants green?"})
	require.NoError(t, err)
	second := provider.Calls[1].Messages
	require.Len(t, second, 3, "previous question and answer are sent as history")
	assert.Equal(t, llm.RoleUser, second[0].Role)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)

	detail, err := chat.GetSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 4)
	assert.Equal(t, "What is photosynthesis in plants?", detail.Title)
	assert.NotEmpty(t, detail.Messages[1].Citations)
}

func TestAskHistoryLimit(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.cfg.RAG.HistoryLimit = 2
	provider := llm.NewMockProvider(
		llm.MockResponse{Content: "one"}, llm.MockResponse{Content: "two"}, llm.MockResponse{Content: "three"},
	)
	chat := indexedChat(t, h, provider)
	session, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{Title: "Biology"})
	require.NoError(t, err)

	for _, q := range []string{"first", "second", "third"} {
		_, err := chat.Ask(ctx, h.student(0), session.ID, AskInput{Question: q})
		require.NoError(t, err)
	}
	last := provider.Calls[2].Messages
	require.Len(t, last, 3)
	assert.Equal(t, "second", last[0].Content)
	assert.Equal(t, "two", last[1].Content)

	detail, err := chat.GetSession(ctx, h.student(0), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", detail.Title)
}

func TestAskRespectsMinScoreAndTextbookFilter(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	provider := llm.NewMockProvider(llm.MockResponse{Content: "a"}, llm.MockResponse{Content: "b"})
	chat := indexedChat(t, h, provider)

	other := model.Textbook{SchoolID: &h.f.School.ID, Title: "Biology 7", Subject: "biology", GradeLevel: 7}
	require.NoError(t, h.db.Create(&other).Error)
	bound, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{TextbookID: &other.ID})
	require.NoError(t, err)

	reply, err := chat.Ask(ctx, h.student(0), bound.ID, AskInput{Question: "What is photosynthesis in plants?"})
	require.NoError(t, err)
	assert.Empty(t, reply.Answer.Citations, "session is bound to a textbook without indexed paragraphs")
	assert.Contains(t, provider.Calls[0].System, "No textbook excerpts")

	cfg := h.cfg.RAG
	cfg.MinScore = 0.99
	chat.ApplyConfig(cfg)
	open, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{})
	require.NoError(t, err)
	reply, err = chat.Ask(ctx, h.student(0), open.ID, AskInput{Question: "What is photosynthesis in plants?"})
	require.NoError(t, err)
	assert.Empty(t, reply.Answer.Citations)
}

func TestAskProviderFailurePersistsNothing(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	chat := indexedChat(t, h, llm.NewMockProvider())
	session, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{})
	require.NoError(t, err)

	_, err = chat.Ask(ctx, h.student(0), session.ID, AskInput{Question: "What is photosynthesis?"})
	var unavailable *llm.ErrProviderUnavailable
	require.ErrorAs(t, err, &unavailable)

	msgs, err := chat.ChatRepo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAskPersistsAfterSlowAnswer(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	provider := slowProvider{MockProvider: llm.NewMockProvider(llm.MockResponse{Content: "Light becomes sugar [1]."}), delay: 60 * time.Millisecond}
	chat := indexedChat(t, h, provider)
	chat.LLM.Timeout = 20 * time.Millisecond
	session, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{})
	require.NoError(t, err)

	reply, err := chat.Ask(ctx, h.student(0), session.ID, AskInput{Question: "What is photosynthesis?"})
	require.NoError(t, err)
	assert.Equal(t, "Light becomes sugar [1].", reply.Answer.Content)

	msgs, err := chat.ChatRepo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestChatSessionsArePrivate(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	chat := NewChatService(h.db, nil, llm.NewMockProvider(), config.LLMConfig{}, h.cfg.RAG)

	session, err := chat.CreateSession(ctx, h.student(0), CreateSessionInput{})
	require.NoError(t, err)

	var nf *util.NotFoundError
	_, err = chat.GetSession(ctx, h.student(1), session.ID)
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, chat.DeleteSession(ctx, h.student(1), session.ID), &nf)

	_, err = chat.Ask(ctx, h.student(0), session.ID, AskInput{Question: "   "})
	var ve *util.ValidationError
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, chat.DeleteSession(ctx, h.student(0), session.ID))
	list, err := chat.ListSessions(ctx, h.student(0))
	require.NoError(t, err)
	assert.Empty(t, list)
}
