// Package mastery 根据已评分的测验计算段落/章节掌握度
package mastery

import (
	"sort"
	"time"

	"ai_mentor_backend/internal/model"
)

const (
	DefaultTierAThreshold = 80.0
	DefaultTierBThreshold = 50.0
)

// DefaultWindows 各测验用途参与滚动平均的最近次数，0 表示全部
var DefaultWindows = map[model.TestPurpose]int{
	model.PurposeFormative:  5,
	model.PurposePractice:   3,
	model.PurposeDiagnostic: 1,
	model.PurposeSummative:  0,
}

type Attempt struct {
	ID       uint
	Score    float64
	GradedAt time.Time
}

type Result struct {
	Tier               model.MasteryTier
	AverageScore       float64
	AttemptsConsidered int
	LastAttemptID      uint
}

// Classifier 把滚动平均分映射为 A/B/C 三档
type Classifier struct {
	TierA   float64
	TierB   float64
	Windows map[model.TestPurpose]int
}

func NewClassifier() *Classifier {
	windows := make(map[model.TestPurpose]int, len(DefaultWindows))
	for k, v := range DefaultWindows {
		windows[k] = v
	}
	return &Classifier{TierA: DefaultTierAThreshold, TierB: DefaultTierBThreshold, Windows: windows}
}

// Tier 平均分为百分制
func (c *Classifier) Tier(avg float64) model.MasteryTier {
	switch {
	case avg >= c.TierA:
		return model.TierA
	case avg >= c.TierB:
		return model.TierB
	default:
		return model.TierC
	}
}

// Window 未知用途按全部次数计算
func (c *Classifier) Window(purpose model.TestPurpose) int {
	if n, ok := c.Windows[purpose]; ok && n > 0 {
		return n
	}
	return 0
}

// Classify 按用途的窗口取最近的测验求平均；没有已评分测验时第二个返回值为 false，该单元不定档
func (c *Classifier) Classify(attempts []Attempt, purpose model.TestPurpose) (Result, bool) {
	if len(attempts) == 0 {
		return Result{}, false
	}

	ordered := make([]Attempt, len(attempts))
	copy(ordered, attempts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].GradedAt.Equal(ordered[j].GradedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].GradedAt.Before(ordered[j].GradedAt)
	})

	if n := c.Window(purpose); n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}

	sum := 0.0
	for _, a := range ordered {
		sum += clamp(a.Score, 0, 100)
	}
	avg := sum / float64(len(ordered))

	return Result{
		Tier:               c.Tier(avg),
		AverageScore:       avg,
		AttemptsConsidered: len(ordered),
		LastAttemptID:      ordered[len(ordered)-1].ID,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
