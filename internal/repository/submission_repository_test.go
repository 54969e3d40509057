package repository

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/testutil"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionCreateConflict(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 1)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	sub := &model.StudentTaskSubmission{StudentID: f.Students[0].ID, TaskID: 7, HomeworkID: 3, Status: model.SubmissionInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, sub))

	dup := &model.StudentTaskSubmission{StudentID: f.Students[0].ID, TaskID: 7, HomeworkID: 3, Status: model.SubmissionInProgress, StartedAt: time.Now()}
	err := repo.Create(ctx, dup)
	var conflict *util.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpsertAnswerKeepsSingleRow(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 1)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	sub := &model.StudentTaskSubmission{StudentID: f.Students[0].ID, TaskID: 1, HomeworkID: 1, Status: model.SubmissionInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, sub))

	require.NoError(t, repo.UpsertAnswer(ctx, &model.StudentTaskAnswer{SubmissionID: sub.ID, QuestionID: 5, AnswerText: "first"}))
	require.NoError(t, repo.UpsertAnswer(ctx, &model.StudentTaskAnswer{SubmissionID: sub.ID, QuestionID: 5, AnswerText: "second", SelectedOptionIDs: []string{"b"}}))

	answers, err := repo.ListAnswers(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "second", answers[0].AnswerText)
	assert.Equal(t, []string{"b"}, []string(answers[0].SelectedOptionIDs))
	assert.Nil(t, answers[0].IsCorrect)
}

func TestListReviewQueue(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 2)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	now := time.Now()

	hw := model.Homework{SchoolID: f.School.ID, ClassID: f.Class.ID, TeacherID: f.Teacher.ID, Title: "HW", Status: model.HomeworkPublished, DueDate: now.Add(time.Hour)}
	require.NoError(t, db.Create(&hw).Error)
	task := model.HomeworkTask{HomeworkID: hw.ID, Title: "Essay"}
	require.NoError(t, db.Create(&task).Error)
	q := model.HomeworkTaskQuestion{TaskID: task.ID, QuestionType: model.OpenEnded, Text: "Explain", Points: 5}
	require.NoError(t, db.Create(&q).Error)

	for i, st := range f.Students {
		sub := &model.StudentTaskSubmission{StudentID: st.ID, TaskID: task.ID, HomeworkID: hw.ID, Status: model.SubmissionNeedsReview, StartedAt: now, SubmittedAt: &now}
		require.NoError(t, repo.Create(ctx, sub))
		answer := &model.StudentTaskAnswer{SubmissionID: sub.ID, QuestionID: q.ID, AnswerText: "because"}
		if i == 1 {
			answer.Score = util.Float64Ptr(5)
		}
		require.NoError(t, db.Create(answer).Error)
	}

	items, total, err := repo.ListReviewQueue(ctx, []uint{f.Class.ID}, 0, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, f.Students[0].ID, items[0].StudentID)
	assert.Equal(t, "Explain", items[0].QuestionText)

	items, total, err = repo.ListReviewQueue(ctx, nil, 0, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}
