package mastery

import "time"

const (
	DefaultStreakTarget   = 7
	DefaultActivityWindow = 14
)

// Engagement 学习活跃度
type Engagement struct {
	Streak     int     `json:"streak"`
	ActiveDays int     `json:"activeDays"`
	Index      float64 `json:"index"`
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func distinctDays(activity []time.Time, loc *time.Location) map[time.Time]struct{} {
	days := make(map[time.Time]struct{}, len(activity))
	for _, t := range activity {
		days[dayOf(t, loc)] = struct{}{}
	}
	return days
}

// Streak 截至今天的连续活跃天数；今天还没有活动时从昨天算起
func Streak(activity []time.Time, now time.Time) int {
	loc := now.Location()
	days := distinctDays(activity, loc)

	cursor := dayOf(now, loc)
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// ActiveDays 最近 window 天（含今天）内的活跃天数
func ActiveDays(activity []time.Time, now time.Time, window int) int {
	loc := now.Location()
	today := dayOf(now, loc)
	oldest := today.AddDate(0, 0, -(window - 1))

	count := 0
	for day := range distinctDays(activity, loc) {
		if !day.Before(oldest) && !day.After(today) {
			count++
		}
	}
	return count
}

// EngagementIndex = 0.5·min(streak/target, 1) + 0.5·(activeDays/window)
func EngagementIndex(streak, activeDays, target, window int) float64 {
	if target <= 0 {
		target = DefaultStreakTarget
	}
	if window <= 0 {
		window = DefaultActivityWindow
	}
	streakPart := clamp(float64(streak)/float64(target), 0, 1)
	activityPart := clamp(float64(activeDays)/float64(window), 0, 1)
	return 0.5*streakPart + 0.5*activityPart
}

func ComputeEngagement(activity []time.Time, now time.Time, target, window int) Engagement {
	if window <= 0 {
		window = DefaultActivityWindow
	}
	streak := Streak(activity, now)
	active := ActiveDays(activity, now, window)
	return Engagement{
		Streak:     streak,
		ActiveDays: active,
		Index:      EngagementIndex(streak, active, target, window),
	}
}
