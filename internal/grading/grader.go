// Package grading 判分、迟交扣分与提交状态流转，均为纯函数
package grading

import (
	"strings"

	"ai_mentor_backend/internal/model"
)

// Question 单题的标准答案
type Question struct {
	ID               uint
	Type             model.QuestionType
	Points           float64
	CorrectOptionIDs []string
	AcceptedAnswers  []string
}

type Answer struct {
	SelectedOptionIDs []string
	Text              string
}

// Verdict 开放题 Graded 为 false，等待人工或 AI 批改
type Verdict struct {
	Graded  bool
	Correct bool
	Score   float64
}

// GradeAnswer 按题型判分，同一答案重复判分结果一致
func GradeAnswer(q Question, a Answer) Verdict {
	var correct bool
	switch {
	case q.Type.IsChoice():
		correct = SameOptionSet(a.SelectedOptionIDs, q.CorrectOptionIDs)
	case q.Type == model.ShortAnswer:
		correct = MatchesAccepted(a.Text, q.AcceptedAnswers)
	default:
		return Verdict{}
	}

	v := Verdict{Graded: true, Correct: correct}
	if correct {
		v.Score = q.Points
	}
	return v
}

// SameOptionSet 选项集合完全相等才算对；标准答案为空时永远不对
func SameOptionSet(selected, correct []string) bool {
	want := toSet(correct)
	if len(want) == 0 {
		return false
	}
	got := toSet(selected)
	if len(got) != len(want) {
		return false
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}

// NormalizeText 转小写并去掉首尾空白
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func MatchesAccepted(text string, accepted []string) bool {
	got := NormalizeText(text)
	if got == "" {
		return false
	}
	for _, a := range accepted {
		if NormalizeText(a) == got {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Summary 整份提交的得分汇总
type Summary struct {
	Earned  float64
	Max     float64
	Pending int
}

// Complete 所有答案都已判分
func (s Summary) Complete() bool {
	return s.Pending == 0
}

// Percent 百分制得分
func (s Summary) Percent() float64 {
	return Percent(s.Earned, s.Max)
}

// Summarize 累加各题得分，并统计待批改的题数
func Summarize(questions []Question, verdicts map[uint]Verdict) Summary {
	var sum Summary
	for _, q := range questions {
		sum.Max += q.Points
		v, ok := verdicts[q.ID]
		if !ok {
			// 未作答的客观题记 0 分
			if !q.Type.AutoGradable() {
				sum.Pending++
			}
			continue
		}
		if !v.Graded {
			sum.Pending++
			continue
		}
		sum.Earned += v.Score
	}
	return sum
}

func Percent(earned, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return earned / max * 100
}
