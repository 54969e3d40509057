package service

import (
	"context"
	"testing"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createQuiz 建一道单选题的段落测验
func createQuiz(t *testing.T, h *harness, paragraph bool, purpose model.TestPurpose) *TestDetail {
	t.Helper()
	in := CreateTestInput{
		ChapterID: h.f.Chapter.ID,
		Title:     "Quiz",
		Purpose:   purpose,
		Questions: []TestQuestionInput{
			{
				QuestionType:     model.SingleChoice,
				Text:             "x + 1 = 3, x = ?",
				Options:          []model.Option{{ID: "a", Text: "1"}, {ID: "b", Text: "2"}},
				CorrectOptionIDs: []string{"b"},
				Points:           1,
			},
			{
				QuestionType:    model.ShortAnswer,
				Text:            "Name the unknown in an equation",
				AcceptedAnswers: []string{"variable"},
				Points:          1,
			},
		},
	}
	if paragraph {
		in.ParagraphID = &h.f.Paragraphs[0].ID
	}
	detail, err := h.tests.CreateTest(context.Background(), h.teacher(), in)
	require.NoError(t, err)
	return detail
}

// takeQuiz 作答并返回结果，correct 为答对的题数 (0..2)
func takeQuiz(t *testing.T, h *harness, student Actor, test *TestDetail, correct int) *AttemptResult {
	t.Helper()
	ctx := context.Background()
	attempt, err := h.tests.StartAttempt(ctx, student, test.ID)
	require.NoError(t, err)

	answers := []AnswerInput{
		{QuestionID: test.Questions[0].ID, SelectedOptionIDs: []string{"a"}},
		{QuestionID: test.Questions[1].ID, AnswerText: "constant"},
	}
	if correct >= 1 {
		answers[0].SelectedOptionIDs = []string{"b"}
	}
	if correct >= 2 {
		answers[1].AnswerText = "  Variable "
	}
	res, err := h.tests.SubmitAttempt(ctx, student, attempt.ID, answers)
	require.NoError(t, err)
	return res
}

func TestCreateTestRejectsBadQuestions(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	var ve *util.ValidationError

	in := CreateTestInput{
		ChapterID: h.f.Chapter.ID,
		Title:     "Bad",
		Purpose:   model.PurposeFormative,
		Questions: []TestQuestionInput{{QuestionType: model.OpenEnded, Text: "Discuss"}},
	}
	_, err := h.tests.CreateTest(ctx, h.teacher(), in)
	assert.ErrorAs(t, err, &ve)

	in.Questions = []TestQuestionInput{{
		QuestionType:     model.SingleChoice,
		Text:             "Pick",
		Options:          []model.Option{{ID: "a"}, {ID: "b"}},
		CorrectOptionIDs: []string{"c"},
	}}
	_, err = h.tests.CreateTest(ctx, h.teacher(), in)
	assert.ErrorAs(t, err, &ve)

	_, err = h.tests.CreateTest(ctx, h.student(0), in)
	assert.ErrorIs(t, err, util.ErrForbidden)
}

func TestSubmitAttemptGradesAndClassifies(t *testing.T) {
	h := newHarness(t, 1)
	quiz := createQuiz(t, h, true, model.PurposeFormative)

	res := takeQuiz(t, h, h.student(0), quiz, 2)
	require.NotNil(t, res.Attempt.Score)
	assert.Equal(t, 100.0, *res.Attempt.Score)
	assert.Equal(t, model.AttemptGraded, res.Attempt.Status)
	require.Len(t, res.Answers, 2)
	assert.True(t, *res.Answers[1].IsCorrect, "short answer is matched case-insensitively after trimming")

	// 段落测验同时更新段落和章节
	require.Len(t, res.Transitions, 2)
	assert.Equal(t, model.UnitParagraph, res.Transitions[0].UnitType)
	assert.Nil(t, res.Transitions[0].Previous)
	assert.Equal(t, model.TierA, res.Transitions[0].Current)
	assert.Equal(t, model.UnitChapter, res.Transitions[1].UnitType)
}

func TestSubmitAttemptTwiceIsRejected(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	quiz := createQuiz(t, h, false, model.PurposePractice)

	res := takeQuiz(t, h, h.student(0), quiz, 1)
	assert.Equal(t, 50.0, *res.Attempt.Score)

	_, err := h.tests.SubmitAttempt(ctx, h.student(0), res.Attempt.ID, nil)
	var st *util.StateTransitionError
	assert.ErrorAs(t, err, &st)

	next, err := h.tests.StartAttempt(ctx, h.student(0), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.AttemptNumber)
}

func TestStartAttemptReusesOpenAttempt(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	quiz := createQuiz(t, h, false, model.PurposePractice)

	first, err := h.tests.StartAttempt(ctx, h.student(0), quiz.ID)
	require.NoError(t, err)
	second, err := h.tests.StartAttempt(ctx, h.student(0), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCorrectAttemptRecomputesMastery(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	quiz := createQuiz(t, h, false, model.PurposeSummative)

	res := takeQuiz(t, h, h.student(0), quiz, 2)
	assert.Equal(t, model.TierA, res.Transitions[0].Current)

	_, err := h.tests.CorrectAttempt(ctx, h.student(0), res.Attempt.ID, CorrectAttemptInput{Score: 10, Reason: "x"})
	assert.ErrorIs(t, err, util.ErrForbidden)

	corrected, err := h.tests.CorrectAttempt(ctx, h.teacher(), res.Attempt.ID, CorrectAttemptInput{Score: 40, Reason: "copied answers"})
	require.NoError(t, err)
	assert.Equal(t, 40.0, *corrected.Attempt.Score)
	assert.NotNil(t, corrected.Attempt.CorrectedAt)
	require.Len(t, corrected.Transitions, 1)
	assert.Equal(t, model.TierA, *corrected.Transitions[0].Previous)
	assert.Equal(t, model.TierC, corrected.Transitions[0].Current)
}
