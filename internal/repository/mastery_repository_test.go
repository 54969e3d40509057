package repository

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasteryUpsertAndHistory(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 1)
	repo := NewMasteryRepository(db)
	ctx := context.Background()
	student := f.Students[0].ID

	got, err := repo.FindChapter(ctx, student, f.Chapter.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.UpsertChapter(ctx, &model.ChapterMastery{StudentID: student, ChapterID: f.Chapter.ID, Tier: model.TierC, AverageScore: 30, AttemptsConsidered: 1, LastAttemptID: 1}))
	require.NoError(t, repo.UpsertChapter(ctx, &model.ChapterMastery{StudentID: student, ChapterID: f.Chapter.ID, Tier: model.TierB, AverageScore: 65, AttemptsConsidered: 2, LastAttemptID: 2}))

	got, err = repo.FindChapter(ctx, student, f.Chapter.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.TierB, got.Tier)
	assert.Equal(t, 2, got.AttemptsConsidered)

	prev := model.TierC
	require.NoError(t, repo.AppendHistory(ctx, &model.MasteryHistory{StudentID: student, UnitType: model.UnitChapter, UnitID: f.Chapter.ID, NewTier: model.TierC, RecordedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.AppendHistory(ctx, &model.MasteryHistory{StudentID: student, UnitType: model.UnitChapter, UnitID: f.Chapter.ID, PreviousTier: &prev, NewTier: model.TierB, RecordedAt: time.Now()}))

	history, err := repo.ListHistory(ctx, student, model.UnitChapter, f.Chapter.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousTier)
	assert.Equal(t, model.TierB, history[1].NewTier)
}

func TestListParagraphsOfStudentByChapter(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 1)
	repo := NewMasteryRepository(db)
	ctx := context.Background()
	student := f.Students[0].ID

	for _, p := range f.Paragraphs {
		require.NoError(t, repo.UpsertParagraph(ctx, &model.ParagraphMastery{StudentID: student, ParagraphID: p.ID, Tier: model.TierA, AverageScore: 95}))
	}

	rows, err := repo.ListParagraphsOfStudent(ctx, student, f.Chapter.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListParagraphsOfStudent(ctx, student, f.Chapter.ID+100)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
