package service

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const generatedFenced = "Here are your questions:\n```json\n" + `[
  {"questionType": "multiple_choice", "text": "Which values solve x^2 = 1?",
   "options": [{"id": "1", "text": "1"}, {"id": "2", "text": "0"}, {"id": "3", "text": "-1"}],
   "correctOptionIds": ["1", "3"], "points": 2},
  {"questionType": "open_ended", "text": "Explain what a linear equation is.",
   "gradingRubric": "Mentions degree one and one unknown.", "bloomLevel": "understand"}
]` + "\n```\nGood luck!"

func draftTask(t *testing.T, h *harness) *model.HomeworkTask {
	t.Helper()
	ctx := context.Background()
	hw, err := h.homework.CreateHomework(ctx, h.teacher(), h.homeworkInput(h.clk.t.Add(72*time.Hour)))
	require.NoError(t, err)
	task, err := h.homework.AddTask(ctx, h.teacher(), hw.ID, TaskInput{Title: "Generated", ParagraphID: &h.f.Paragraphs[0].ID})
	require.NoError(t, err)
	return task
}

func generateInput() GenerateQuestionsInput {
	return GenerateQuestionsInput{Count: 2, Difficulty: model.DifficultyMedium, BloomLevel: model.BloomApply}
}

func TestGenerateQuestionsFromFencedOutput(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	provider := llm.NewMockProvider(llm.MockResponse{Content: generatedFenced})
	gen := NewGenerationService(h.db, h.homework, provider, config.LLMConfig{})
	task := draftTask(t, h)

	questions, err := gen.GenerateQuestions(ctx, h.teacher(), task.ID, generateInput())
	require.NoError(t, err)
	require.Len(t, questions, 2)

	stored, err := h.homework.HomeworkRepo.ListQuestions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].AIGenerated)
	assert.Equal(t, []string{"1", "3"}, []string(stored[0].CorrectOptionIDs))
	assert.Equal(t, model.DifficultyMedium, stored[0].Difficulty, "missing difficulty falls back to the request")
	assert.Equal(t, model.BloomUnderstand, stored[1].BloomLevel)
	assert.Equal(t, 1.0, stored[1].Points)

	require.Equal(t, 1, provider.CallCount())
	prompt := provider.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, h.f.Paragraphs[0].Content)
	assert.Contains(t, prompt, "Bloom level: apply")
}

// slowProvider 忽略 ctx，在超时之后才成功返回
type slowProvider struct {
	*llm.MockProvider
	delay time.Duration
}

func (p slowProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	time.Sleep(p.delay)
	return p.MockProvider.Generate(ctx, req)
}

func TestGenerateQuestionsPersistsAfterSlowAnswer(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	provider := slowProvider{MockProvider: llm.NewMockProvider(llm.MockResponse{Content: generatedFenced}), delay: 60 * time.Millisecond}
	gen := NewGenerationService(h.db, h.homework, provider, config.LLMConfig{Timeout: 20 * time.Millisecond})
	task := draftTask(t, h)

	questions, err := gen.GenerateQuestions(ctx, h.teacher(), task.ID, generateInput())
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	stored, err := h.homework.HomeworkRepo.ListQuestions(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGenerateQuestionsRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not json":         "Sorry, I cannot help with that.",
		"truncated":        `[{"questionType": "single_choice", "text": "Q"`,
		"wrong shape":      `{"questions": []}`,
		"empty correct":    `[{"questionType": "single_choice", "text": "Q", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}], "correctOptionIds": []}]`,
		"unknown option":   `[{"questionType": "single_choice", "text": "Q", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}], "correctOptionIds": ["c"]}]`,
		"open w/o rubric":  `[{"questionType": "open_ended", "text": "Discuss"}]`,
		"short w/o answer": `[{"questionType": "short_answer", "text": "Name it", "acceptedAnswers": ["  "]}]`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 0)
			ctx := context.Background()
			provider := llm.NewMockProvider(llm.MockResponse{Content: content})
			gen := NewGenerationService(h.db, h.homework, provider, config.LLMConfig{})
			task := draftTask(t, h)

			_, err := gen.GenerateQuestions(ctx, h.teacher(), task.ID, generateInput())
			var ve *util.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.True(t, ve.Unprocessable)
			assert.Equal(t, 1, provider.CallCount(), "no retry")

			n, err := h.homework.HomeworkRepo.CountQuestions(ctx, task.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestGenerateQuestionsRequiresDraftHomework(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	provider := llm.NewMockProvider(llm.MockResponse{Content: generatedFenced})
	gen := NewGenerationService(h.db, h.homework, provider, config.LLMConfig{})
	p := publish(t, h, h.homeworkInput(h.clk.t.Add(time.Hour)), choiceQuestion(1, "1"))

	_, err := gen.GenerateQuestions(ctx, h.teacher(), p.Task.ID, generateInput())
	var ste *util.StateTransitionError
	assert.ErrorAs(t, err, &ste)
	assert.Zero(t, provider.CallCount())
}

func TestGenerateQuestionsProviderFailure(t *testing.T) {
	h := newHarness(t, 0)
	provider := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	gen := NewGenerationService(h.db, h.homework, provider, config.LLMConfig{})
	task := draftTask(t, h)

	_, err := gen.GenerateQuestions(context.Background(), h.teacher(), task.ID, generateInput())
	var unavailable *llm.ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
