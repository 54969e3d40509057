package mastery

import (
	"testing"
	"time"

	"ai_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attemptsWithScores(scores ...float64) []Attempt {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	out := make([]Attempt, len(scores))
	for i, s := range scores {
		out[i] = Attempt{ID: uint(i + 1), Score: s, GradedAt: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestTierThresholds(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		avg  float64
		want model.MasteryTier
	}{
		{100, model.TierA},
		{80, model.TierA},
		{79.99, model.TierB},
		{50, model.TierB},
		{49.99, model.TierC},
		{0, model.TierC},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Tier(tc.avg), "avg=%v", tc.avg)
	}
}

func TestTierIsMonotonic(t *testing.T) {
	c := NewClassifier()
	rank := map[model.MasteryTier]int{model.TierC: 0, model.TierB: 1, model.TierA: 2}
	prev := rank[c.Tier(0)]
	for avg := 0.0; avg <= 100; avg += 0.5 {
		cur := rank[c.Tier(avg)]
		require.GreaterOrEqual(t, cur, prev, "tier dropped at avg=%v", avg)
		prev = cur
	}
}

func TestClassifyNoAttemptsLeavesTierUnset(t *testing.T) {
	c := NewClassifier()
	res, ok := c.Classify(nil, model.PurposeFormative)
	assert.False(t, ok)
	assert.Equal(t, model.MasteryTier(""), res.Tier)
}

func TestClassifyFormativeWindow(t *testing.T) {
	c := NewClassifier()
	// 七次测验只取最近五次: (60+70+80+90+100) / 5 = 80
	res, ok := c.Classify(attemptsWithScores(0, 0, 60, 70, 80, 90, 100), model.PurposeFormative)
	require.True(t, ok)
	assert.Equal(t, 5, res.AttemptsConsidered)
	assert.InDelta(t, 80.0, res.AverageScore, 1e-9)
	assert.Equal(t, model.TierA, res.Tier)
	assert.Equal(t, uint(7), res.LastAttemptID)
}

func TestClassifySummativeUsesAllAttempts(t *testing.T) {
	c := NewClassifier()
	res, ok := c.Classify(attemptsWithScores(0, 0, 60, 70, 80, 90, 100), model.PurposeSummative)
	require.True(t, ok)
	assert.Equal(t, 7, res.AttemptsConsidered)
	assert.InDelta(t, 400.0/7, res.AverageScore, 1e-9)
	assert.Equal(t, model.TierB, res.Tier)
}

func TestClassifyDiagnosticUsesLatest(t *testing.T) {
	c := NewClassifier()
	res, ok := c.Classify(attemptsWithScores(95, 95, 30), model.PurposeDiagnostic)
	require.True(t, ok)
	assert.Equal(t, 1, res.AttemptsConsidered)
	assert.Equal(t, model.TierC, res.Tier)
}

func TestClassifyOrdersByGradedAt(t *testing.T) {
	c := NewClassifier()
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	attempts := []Attempt{
		{ID: 3, Score: 20, GradedAt: base.Add(3 * time.Hour)},
		{ID: 1, Score: 100, GradedAt: base.Add(1 * time.Hour)},
		{ID: 2, Score: 100, GradedAt: base.Add(2 * time.Hour)},
	}
	res, ok := c.Classify(attempts, model.PurposeDiagnostic)
	require.True(t, ok)
	assert.Equal(t, uint(3), res.LastAttemptID)
	assert.Equal(t, model.TierC, res.Tier)
}

func TestClassifyUnknownPurposeIsAllTime(t *testing.T) {
	c := NewClassifier()
	res, ok := c.Classify(attemptsWithScores(10, 90), model.TestPurpose("other"))
	require.True(t, ok)
	assert.Equal(t, 2, res.AttemptsConsidered)
	assert.Equal(t, model.TierB, res.Tier)
}
