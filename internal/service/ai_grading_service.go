package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"
)

const gradingSystemPrompt = `You are a strict but fair school teacher grading a student's answer.
Grade only against the question and the rubric. Reply with a single JSON object.`

var answerGradeSchema = &llm.Schema{
	Name:        "answer-grade",
	Description: "Score, confidence and feedback for one open-ended answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":      map[string]any{"type": "number", "minimum": 0},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"feedback":   map[string]any{"type": "string"},
		},
		"required":             []string{"score", "confidence", "feedback"},
		"additionalProperties": false,
	},
}

// AIGrade 模型给出的建议分数
type AIGrade struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

// AIGrader 对开放题打分，不重试；是否采纳由置信度阈值决定
type AIGrader struct {
	Provider llm.Provider

	mu  sync.RWMutex
	cfg config.GradingConfig
}

func NewAIGrader(provider llm.Provider, cfg config.GradingConfig) *AIGrader {
	return &AIGrader{Provider: provider, cfg: cfg}
}

func (g *AIGrader) ApplyConfig(cfg config.GradingConfig) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

func (g *AIGrader) config() config.GradingConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Accepts 置信度达到阈值的建议直接作为最终分数
func (g *AIGrader) Accepts(grade *AIGrade) bool {
	return grade.Confidence >= g.config().AIConfidenceThreshold
}

func gradingPrompt(q *model.HomeworkTaskQuestion, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question (max %.2f points):\n%s\n\n", q.Points, q.Text)
	if q.GradingRubric != "" {
		fmt.Fprintf(&b, "Rubric:\n%s\n\n", q.GradingRubric)
	}
	fmt.Fprintf(&b, "Student answer:\n%s\n\n", strings.TrimSpace(answer))
	b.WriteString(`Return {"score": number between 0 and the max points, "confidence": number between 0 and 1, "feedback": short feedback for the student}.`)
	return b.String()
}

// Grade 调用模型给单道开放题打分，分数截断到 [0, points]
func (g *AIGrader) Grade(ctx context.Context, q *model.HomeworkTaskQuestion, answer string) (*AIGrade, error) {
	if strings.TrimSpace(answer) == "" {
		return &AIGrade{Score: 0, Confidence: 1, Feedback: "No answer given."}, nil
	}

	req := llm.Text(gradingSystemPrompt, gradingPrompt(q, answer), 512, 0)
	req.Schema = answerGradeSchema
	resp, err := generate(ctx, g.Provider, g.config().AIGradingTimeout, "grading", req)
	if err != nil {
		return nil, err
	}

	raw := llm.ExtractJSON(resp.Content)
	if _, err := llm.Validate(answerGradeSchema, []byte(raw)); err != nil {
		return nil, util.NewMalformedOutputError("grade does not match schema: %v", err)
	}
	var grade AIGrade
	if err := json.Unmarshal([]byte(raw), &grade); err != nil {
		return nil, util.NewMalformedOutputError("decode grade: %v", err)
	}
	if grade.Score < 0 {
		grade.Score = 0
	}
	if grade.Score > q.Points {
		grade.Score = q.Points
	}
	return &grade, nil
}
