package grading

import (
	"testing"

	"ai_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestMultipleChoiceExactSet(t *testing.T) {
	q := Question{Type: model.MultipleChoice, Points: 2, CorrectOptionIDs: []string{"1", "3"}}

	assert.True(t, GradeAnswer(q, Answer{SelectedOptionIDs: []string{"1", "3"}}).Correct)
	assert.True(t, GradeAnswer(q, Answer{SelectedOptionIDs: []string{"3", "1"}}).Correct)
	assert.False(t, GradeAnswer(q, Answer{SelectedOptionIDs: []string{"1"}}).Correct)
	assert.False(t, GradeAnswer(q, Answer{SelectedOptionIDs: []string{"1", "2", "3"}}).Correct)
	assert.False(t, GradeAnswer(q, Answer{}).Correct)

	v := GradeAnswer(q, Answer{SelectedOptionIDs: []string{"1", "3"}})
	assert.True(t, v.Graded)
	assert.Equal(t, 2.0, v.Score)
}

func TestSingleChoiceAndTrueFalse(t *testing.T) {
	single := Question{Type: model.SingleChoice, Points: 1, CorrectOptionIDs: []string{"b"}}
	assert.True(t, GradeAnswer(single, Answer{SelectedOptionIDs: []string{"b"}}).Correct)
	assert.False(t, GradeAnswer(single, Answer{SelectedOptionIDs: []string{"a"}}).Correct)

	tf := Question{Type: model.TrueFalse, Points: 1, CorrectOptionIDs: []string{"true"}}
	v := GradeAnswer(tf, Answer{SelectedOptionIDs: []string{"false"}})
	assert.True(t, v.Graded)
	assert.False(t, v.Correct)
	assert.Zero(t, v.Score)
}

func TestShortAnswerNormalisation(t *testing.T) {
	q := Question{Type: model.ShortAnswer, Points: 1, AcceptedAnswers: []string{"Paris"}}

	assert.True(t, GradeAnswer(q, Answer{Text: "  paris "}).Correct)
	assert.True(t, GradeAnswer(q, Answer{Text: "PARIS"}).Correct)
	assert.False(t, GradeAnswer(q, Answer{Text: "Pariss"}).Correct)
	assert.False(t, GradeAnswer(q, Answer{Text: "   "}).Correct)

	multi := Question{Type: model.ShortAnswer, Points: 1, AcceptedAnswers: []string{"x = 2", "2"}}
	assert.True(t, GradeAnswer(multi, Answer{Text: "2"}).Correct)
}

func TestOpenEndedIsNotAutoGraded(t *testing.T) {
	q := Question{Type: model.OpenEnded, Points: 5}
	v := GradeAnswer(q, Answer{Text: "an essay"})
	assert.False(t, v.Graded)
	assert.Zero(t, v.Score)
}

func TestGradingIsIdempotent(t *testing.T) {
	q := Question{Type: model.MultipleChoice, Points: 3, CorrectOptionIDs: []string{"1", "3"}}
	a := Answer{SelectedOptionIDs: []string{"3", "1"}}
	assert.Equal(t, GradeAnswer(q, a), GradeAnswer(q, a))
}

func TestSummarize(t *testing.T) {
	questions := []Question{
		{ID: 1, Type: model.SingleChoice, Points: 2},
		{ID: 2, Type: model.ShortAnswer, Points: 3},
		{ID: 3, Type: model.OpenEnded, Points: 5},
		{ID: 4, Type: model.TrueFalse, Points: 1},
	}
	verdicts := map[uint]Verdict{
		1: {Graded: true, Correct: true, Score: 2},
		2: {Graded: true},
		3: {},
	}

	sum := Summarize(questions, verdicts)
	assert.Equal(t, 11.0, sum.Max)
	assert.Equal(t, 2.0, sum.Earned)
	assert.Equal(t, 1, sum.Pending)
	assert.False(t, sum.Complete())

	verdicts[3] = Verdict{Graded: true, Correct: true, Score: 4}
	sum = Summarize(questions, verdicts)
	assert.True(t, sum.Complete())
	assert.Equal(t, 6.0, sum.Earned)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.InDelta(t, 75.0, Percent(3, 4), 1e-9)
}
