package service

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasteryUnsetWithoutAttempts(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	m, err := h.mastery.GetStudentMastery(ctx, h.student(0), h.f.Students[0].ID)
	require.NoError(t, err)
	assert.Empty(t, m.Chapters)
	assert.Empty(t, m.Paragraphs)
	assert.Zero(t, m.Engagement.Index)
}

func TestHistoryAppendedOnlyOnTierChange(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	quiz := createQuiz(t, h, false, model.PurposeFormative)
	student := h.f.Students[0].ID

	takeQuiz(t, h, h.student(0), quiz, 2) // 100 -> A
	res := takeQuiz(t, h, h.student(0), quiz, 2)
	assert.Empty(t, res.Transitions, "same tier must not append history")

	res = takeQuiz(t, h, h.student(0), quiz, 0) // avg 66.67 -> B
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, model.TierB, res.Transitions[0].Current)

	history, err := h.mastery.GetHistory(ctx, h.student(0), student, model.UnitChapter, h.f.Chapter.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousTier)
	assert.Equal(t, model.TierA, history[0].NewTier)
	assert.Equal(t, model.TierA, *history[1].PreviousTier)
	assert.Equal(t, model.TierB, history[1].NewTier)
	assert.InDelta(t, 66.67, history[1].AverageScore, 0.01)
}

func TestDiagnosticWindowUsesLatestAttempt(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	formative := createQuiz(t, h, false, model.PurposeFormative)
	diagnostic := createQuiz(t, h, false, model.PurposeDiagnostic)

	takeQuiz(t, h, h.student(0), formative, 0)
	takeQuiz(t, h, h.student(0), formative, 0)
	res := takeQuiz(t, h, h.student(0), diagnostic, 2)

	// 诊断测试只看最近一次作答
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, model.TierC, *res.Transitions[0].Previous)
	assert.Equal(t, model.TierA, res.Transitions[0].Current)

	m, err := h.mastery.GetStudentMastery(ctx, h.teacher(), h.f.Students[0].ID)
	require.NoError(t, err)
	require.Len(t, m.Chapters, 1)
	assert.Equal(t, 1, m.Chapters[0].AttemptsConsidered)
}

func TestMasteryMonotonicInScore(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	quiz := createQuiz(t, h, true, model.PurposeSummative)

	for i := 0; i < 3; i++ {
		takeQuiz(t, h, h.student(i), quiz, i)
	}

	rank := map[model.MasteryTier]int{model.TierC: 0, model.TierB: 1, model.TierA: 2}
	prev := -1
	for i := 0; i < 3; i++ {
		m, err := h.mastery.GetStudentMastery(ctx, h.teacher(), h.f.Students[i].ID)
		require.NoError(t, err)
		require.Len(t, m.Paragraphs, 1)
		r := rank[m.Paragraphs[0].Tier]
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestRecomputeStudentIsIdempotent(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	quiz := createQuiz(t, h, true, model.PurposeFormative)
	takeQuiz(t, h, h.student(0), quiz, 1)

	transitions, err := h.mastery.RecomputeStudent(ctx, h.f.Students[0].ID)
	require.NoError(t, err)
	assert.Empty(t, transitions)

	students, changes, err := h.mastery.RecomputeSchool(ctx, &h.f.School.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, students)
	assert.Zero(t, changes)
}

func TestMasteryHotReloadThresholds(t *testing.T) {
	h := newHarness(t, 1)
	quiz := createQuiz(t, h, false, model.PurposeSummative)
	takeQuiz(t, h, h.student(0), quiz, 1) // 50 -> B

	cfg := h.cfg.Mastery
	cfg.TierAThreshold = 90
	cfg.TierBThreshold = 60
	h.mastery.ApplyConfig(cfg)

	transitions, err := h.mastery.RecomputeStudent(context.Background(), h.f.Students[0].ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, model.TierC, transitions[0].Current)
}

func TestEngagementCountsAttemptsAndSubmissions(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	h.mastery.now = func() time.Time { return now }
	student := h.f.Students[0].ID

	test := model.Test{ChapterID: h.f.Chapter.ID, Title: "T", Purpose: model.PurposePractice}
	require.NoError(t, h.db.Create(&test).Error)
	for i, day := range []int{0, 1, 2} {
		at := now.AddDate(0, 0, -day)
		a := model.TestAttempt{StudentID: student, TestID: test.ID, AttemptNumber: i + 1, Status: model.AttemptGraded, Score: util.Float64Ptr(70), StartedAt: at, GradedAt: &at}
		require.NoError(t, h.db.Create(&a).Error)
	}
	sub := now.AddDate(0, 0, -3)
	require.NoError(t, h.db.Create(&model.StudentTaskSubmission{StudentID: student, TaskID: 1, HomeworkID: 1, Status: model.SubmissionGraded, StartedAt: sub, SubmittedAt: &sub}).Error)

	e, err := h.mastery.Engagement(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 4, e.Streak)
	assert.Equal(t, 4, e.ActiveDays)
	assert.InDelta(t, 0.5*4.0/7.0+0.5*4.0/14.0, e.Index, 1e-9)
}

func TestStudentCannotViewClassmate(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.mastery.GetStudentMastery(context.Background(), h.student(0), h.f.Students[1].ID)
	assert.ErrorIs(t, err, util.ErrForbidden)
}
