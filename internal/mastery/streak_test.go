package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func daysAgo(now time.Time, n ...int) []time.Time {
	out := make([]time.Time, len(n))
	for i, d := range n {
		out[i] = now.AddDate(0, 0, -d)
	}
	return out
}

func TestStreak(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, Streak(nil, now))
	assert.Equal(t, 3, Streak(daysAgo(now, 0, 1, 2, 4), now))
	// 今天还没有活动，从昨天开始算
	assert.Equal(t, 2, Streak(daysAgo(now, 1, 2), now))
	assert.Equal(t, 0, Streak(daysAgo(now, 2, 3), now))
	// 同一天多次活动只算一天
	assert.Equal(t, 1, Streak(append(daysAgo(now, 0), now.Add(-time.Hour)), now))
}

func TestActiveDays(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, ActiveDays(daysAgo(now, 0, 5, 13, 14, 20), now, 14))
}

func TestEngagementIndex(t *testing.T) {
	assert.InDelta(t, 0.0, EngagementIndex(0, 0, 7, 14), 1e-9)
	assert.InDelta(t, 1.0, EngagementIndex(14, 14, 7, 14), 1e-9)
	// 0.5*(3/7) + 0.5*(7/14)
	assert.InDelta(t, 0.5*3.0/7.0+0.25, EngagementIndex(3, 7, 7, 14), 1e-9)
}

func TestComputeEngagement(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	e := ComputeEngagement(daysAgo(now, 0, 1, 2, 3, 4, 5, 6, 7), now, 7, 14)
	assert.Equal(t, 8, e.Streak)
	assert.Equal(t, 8, e.ActiveDays)
	assert.InDelta(t, 0.5+0.5*8.0/14.0, e.Index, 1e-9)
}
