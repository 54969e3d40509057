package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const generationSystemPrompt = `You write homework questions for school students.
Use only facts from the provided textbook paragraph. Reply with a JSON array and nothing else.`

var generatedQuestionsSchema = &llm.Schema{
	Name:        "generated-questions",
	Description: "Homework questions generated from a textbook paragraph",
	Definition: map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"questionType": map[string]any{
					"type": "string",
					"enum": []string{string(model.SingleChoice), string(model.MultipleChoice), string(model.TrueFalse), string(model.ShortAnswer), string(model.OpenEnded)},
				},
				"text": map[string]any{"type": "string", "minLength": 1},
				"options": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":   map[string]any{"type": "string", "minLength": 1},
							"text": map[string]any{"type": "string"},
						},
						"required": []string{"id", "text"},
					},
				},
				"correctOptionIds": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"acceptedAnswers":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"gradingRubric":    map[string]any{"type": "string"},
				"explanation":      map[string]any{"type": "string"},
				"points":           map[string]any{"type": "number", "minimum": 0},
				"difficulty":       map[string]any{"type": "string", "enum": []string{string(model.DifficultyEasy), string(model.DifficultyMedium), string(model.DifficultyHard)}},
				"bloomLevel":       map[string]any{"type": "string"},
			},
			"required": []string{"questionType", "text"},
		},
	},
}

// swagger:model GenerateQuestionsInput
type GenerateQuestionsInput struct {
	ParagraphID   *uint                `json:"paragraphId"`
	Count         int                  `json:"count" binding:"required,min=1,max=20"`
	Difficulty    model.Difficulty     `json:"difficulty" binding:"required,difficulty"`
	BloomLevel    model.BloomLevel     `json:"bloomLevel" binding:"required,bloom"`
	QuestionTypes []model.QuestionType `json:"questionTypes" binding:"omitempty,dive,question_type"`
	Language      string               `json:"language"`
}

// GenerationService 基于段落内容让模型出题，不重试
type GenerationService struct {
	DB          *gorm.DB
	Homework    *HomeworkService
	ContentRepo contentReader
	Provider    llm.Provider
	LLM         config.LLMConfig
}

type contentReader interface {
	FindParagraph(ctx context.Context, id uint) (*model.Paragraph, error)
	FindChapter(ctx context.Context, id uint) (*model.Chapter, error)
}

func NewGenerationService(db *gorm.DB, homework *HomeworkService, provider llm.Provider, cfg config.LLMConfig) *GenerationService {
	return &GenerationService{
		DB:          db,
		Homework:    homework,
		ContentRepo: homework.ContentRepo,
		Provider:    provider,
		LLM:         cfg,
	}
}

func generationPrompt(ch *model.Chapter, p *model.Paragraph, in GenerateQuestionsInput) string {
	types := in.QuestionTypes
	if len(types) == 0 {
		types = []model.QuestionType{model.SingleChoice, model.MultipleChoice, model.ShortAnswer, model.OpenEnded}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chapter: %s\nParagraph: %s\n\n%s\n\n", ch.Title, p.Title, p.Content)
	fmt.Fprintf(&b, "Write %d questions. Difficulty: %s. Bloom level: %s. Allowed types: %s.\n",
		in.Count, in.Difficulty, in.BloomLevel, strings.Join(names, ", "))
	if in.Language != "" {
		fmt.Fprintf(&b, "Write the questions in %s.\n", in.Language)
	}
	b.WriteString(`Each item: {"questionType", "text", "options": [{"id","text"}], "correctOptionIds", "acceptedAnswers", "gradingRubric", "explanation", "points", "difficulty", "bloomLevel"}.
Choice questions need options and correctOptionIds; short_answer needs acceptedAnswers; open_ended needs gradingRubric.`)
	return b.String()
}

// parseGenerated 去掉代码块标记后解析，结构与语义校验都通过才返回
func parseGenerated(content string, in GenerateQuestionsInput) ([]model.HomeworkTaskQuestion, error) {
	raw := llm.ExtractJSON(content)
	if _, err := llm.Validate(generatedQuestionsSchema, []byte(raw)); err != nil {
		return nil, util.NewMalformedOutputError("%v", err)
	}
	var items []QuestionInput
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, util.NewMalformedOutputError("decode questions: %v", err)
	}

	questions := make([]model.HomeworkTaskQuestion, 0, len(items))
	for i, item := range items {
		if item.Difficulty == "" {
			item.Difficulty = in.Difficulty
		}
		if item.BloomLevel == "" {
			item.BloomLevel = in.BloomLevel
		}
		q, err := questionFromInput("questions["+itoa(i)+"]", item, true)
		if err != nil {
			return nil, util.NewMalformedOutputError("%v", err)
		}
		q.AIGenerated = true
		questions = append(questions, *q)
	}
	return questions, nil
}

// generate 超时只约束模型调用，之后写库仍使用调用方的 ctx
func generate(ctx context.Context, p llm.Provider, timeout time.Duration, purpose string, req llm.Request) (*llm.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Generate(llm.WithPurpose(ctx, purpose), req)
}

// GenerateQuestions 目标任务必须属于草稿作业；全部题目通过校验才写入
func (s *GenerationService) GenerateQuestions(ctx context.Context, actor Actor, taskID uint, in GenerateQuestionsInput) ([]model.HomeworkTaskQuestion, error) {
	task, _, err := s.Homework.draftTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	paragraphID := task.ParagraphID
	if in.ParagraphID != nil {
		paragraphID = in.ParagraphID
	}
	if paragraphID == nil {
		return nil, util.NewValidationError("paragraphId", "task is not linked to a paragraph")
	}
	paragraph, err := s.ContentRepo.FindParagraph(ctx, *paragraphID)
	if err != nil {
		return nil, err
	}
	chapter, err := s.ContentRepo.FindChapter(ctx, paragraph.ChapterID)
	if err != nil {
		return nil, err
	}

	maxTokens := s.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	provider := s.Provider.ModelID()
	resp, err := generate(ctx, s.Provider, s.LLM.Timeout, "generation",
		llm.Text(generationSystemPrompt, generationPrompt(chapter, paragraph, in), maxTokens, s.LLM.Temperature))
	if err != nil {
		monitoring.GenerationResults.WithLabelValues(provider, "provider_error").Inc()
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := parseGenerated(resp.Content, in)
	if err != nil {
		monitoring.GenerationResults.WithLabelValues(provider, "malformed").Inc()
		logger.Log.Warn("AI 出题结果无法解析",
			zap.Uint("taskID", task.ID),
			zap.Int("contentLength", len(resp.Content)),
			zap.Error(err))
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Homework.HomeworkRepo.WithTx(tx).CreateQuestions(ctx, task.ID, questions)
	})
	if err != nil {
		monitoring.GenerationResults.WithLabelValues(provider, "persist_error").Inc()
		return nil, err
	}
	monitoring.GenerationResults.WithLabelValues(provider, "success").Inc()
	logger.Log.Info("AI 出题完成", zap.Uint("taskID", task.ID), zap.Int("count", len(questions)), zap.String("model", provider))
	return questions, nil
}
