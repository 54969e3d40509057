package grading

import (
	"testing"
	"time"

	"ai_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLate(t *testing.T) {
	due := time.Date(2026, 10, 1, 23, 59, 0, 0, time.UTC)
	assert.False(t, IsLate(due, due))
	assert.False(t, IsLate(due.Add(-time.Minute), due))
	assert.True(t, IsLate(due.Add(time.Second), due))
	assert.False(t, IsLate(due, time.Time{}))
}

func TestLatePenaltyAppliedOnce(t *testing.T) {
	due := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	hw := &model.Homework{DueDate: due, LatePenaltyFactor: 0.8}
	sub := &model.StudentTaskSubmission{Status: model.SubmissionSubmitted}

	Snapshot(sub, hw, due.Add(time.Hour))
	require.True(t, sub.IsLate)
	assert.Equal(t, 0.8, sub.LatePenaltyFactor)

	sum := Summary{Earned: 100, Max: 100}
	now := due.Add(2 * time.Hour)
	require.True(t, Finalize(sub, sum, now))
	assert.Equal(t, 100.0, *sub.RawScore)
	assert.InDelta(t, 80.0, *sub.FinalScore, 1e-9)
	assert.True(t, sub.PenaltyApplied)
	assert.Equal(t, model.SubmissionGraded, sub.Status)

	// 重复 Finalize 不能叠加扣分
	assert.False(t, Finalize(sub, sum, now))
	assert.InDelta(t, 80.0, *sub.FinalScore, 1e-9)
}

func TestSnapshotIgnoresLaterHomeworkEdits(t *testing.T) {
	due := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	hw := &model.Homework{DueDate: due, LatePenaltyFactor: 0.5}
	sub := &model.StudentTaskSubmission{Status: model.SubmissionNeedsReview}
	Snapshot(sub, hw, due.Add(time.Minute))

	hw.LatePenaltyFactor = 0.9
	require.True(t, Finalize(sub, Summary{Earned: 10, Max: 10}, due))
	assert.InDelta(t, 5.0, *sub.FinalScore, 1e-9)
}

func TestOnTimeSubmissionKeepsRawScore(t *testing.T) {
	due := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	sub := &model.StudentTaskSubmission{Status: model.SubmissionSubmitted}
	Snapshot(sub, &model.Homework{DueDate: due, LatePenaltyFactor: 0.8}, due.Add(-time.Hour))

	require.True(t, Finalize(sub, Summary{Earned: 7, Max: 10}, due))
	assert.False(t, sub.IsLate)
	assert.Equal(t, 7.0, *sub.FinalScore)
}

func TestFinalizeWaitsForPendingAnswers(t *testing.T) {
	sub := &model.StudentTaskSubmission{Status: model.SubmissionNeedsReview}
	assert.False(t, Finalize(sub, Summary{Earned: 1, Max: 5, Pending: 1}, time.Now()))
	assert.Nil(t, sub.FinalScore)
	assert.Equal(t, model.SubmissionNeedsReview, sub.Status)
}

func TestApplyPenaltyClampsFactor(t *testing.T) {
	assert.Equal(t, 10.0, ApplyPenalty(10, true, 1.5))
	assert.Equal(t, 0.0, ApplyPenalty(10, true, -1))
	assert.Equal(t, 10.0, ApplyPenalty(10, false, 0.1))
}
