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

func choiceQuestion(points float64, correct ...string) QuestionInput {
	return QuestionInput{
		QuestionType: model.MultipleChoice,
		Text:         "Which of these are solutions?",
		Options: []model.Option{
			{ID: "1", Text: "x = 1"}, {ID: "2", Text: "x = 2"},
			{ID: "3", Text: "x = 3"}, {ID: "4", Text: "x = 4"},
		},
		CorrectOptionIDs: correct,
		Points:           points,
	}
}

func openQuestion(points float64) QuestionInput {
	return QuestionInput{
		QuestionType:  model.OpenEnded,
		Text:          "Explain how you solved the equation.",
		GradingRubric: "Full marks for isolating x step by step.",
		Points:        points,
	}
}

func (h *harness) homeworkInput(due time.Time) HomeworkInput {
	return HomeworkInput{ClassID: h.f.Class.ID, Title: "Equations", DueDate: due}
}

type publishedHomework struct {
	Homework  *model.Homework
	Task      *model.HomeworkTask
	Questions []model.HomeworkTaskQuestion
}

// publish 建一个单任务作业并发布
func publish(t *testing.T, h *harness, in HomeworkInput, questions ...QuestionInput) publishedHomework {
	t.Helper()
	ctx := context.Background()
	hw, err := h.homework.CreateHomework(ctx, h.teacher(), in)
	require.NoError(t, err)
	task, err := h.homework.AddTask(ctx, h.teacher(), hw.ID, TaskInput{Title: "Task 1", ParagraphID: &h.f.Paragraphs[0].ID})
	require.NoError(t, err)
	qs, err := h.homework.AddQuestions(ctx, h.teacher(), task.ID, questions)
	require.NoError(t, err)
	hw, err = h.homework.Publish(ctx, h.teacher(), hw.ID)
	require.NoError(t, err)

	stored, err := h.homework.HomeworkRepo.ListQuestions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(qs))
	return publishedHomework{Homework: hw, Task: task, Questions: stored}
}

func TestHomeworkTransitions(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	var ste *util.StateTransitionError
	var ve *util.ValidationError

	hw, err := h.homework.CreateHomework(ctx, h.teacher(), h.homeworkInput(h.clk.t.Add(72*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, model.HomeworkDraft, hw.Status)
	assert.Equal(t, 0.8, hw.LatePenaltyFactor)

	_, err = h.homework.Publish(ctx, h.teacher(), hw.ID)
	assert.ErrorAs(t, err, &ve, "empty homework cannot be published")

	task, err := h.homework.AddTask(ctx, h.teacher(), hw.ID, TaskInput{Title: "Task"})
	require.NoError(t, err)
	_, err = h.homework.AddQuestions(ctx, h.teacher(), task.ID, []QuestionInput{choiceQuestion(1, "1")})
	require.NoError(t, err)

	hw, err = h.homework.Publish(ctx, h.teacher(), hw.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HomeworkPublished, hw.Status)
	assert.NotNil(t, hw.PublishedAt)

	_, err = h.homework.Publish(ctx, h.teacher(), hw.ID)
	assert.ErrorAs(t, err, &ste)
	_, err = h.homework.AddTask(ctx, h.teacher(), hw.ID, TaskInput{Title: "Late task"})
	assert.ErrorAs(t, err, &ste)

	hw, err = h.homework.Close(ctx, h.teacher(), hw.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HomeworkClosed, hw.Status)

	_, err = h.homework.Close(ctx, h.teacher(), hw.ID)
	assert.ErrorAs(t, err, &ste)
	_, err = h.homework.Publish(ctx, h.teacher(), hw.ID)
	assert.ErrorAs(t, err, &ste, "closed homework never reopens")
}

func TestStudentCannotManageHomework(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.homework.CreateHomework(context.Background(), h.student(0), h.homeworkInput(h.clk.t.Add(time.Hour)))
	assert.ErrorIs(t, err, util.ErrForbidden)
}

func TestAddQuestionsIsAllOrNothing(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	var ve *util.ValidationError

	hw, err := h.homework.CreateHomework(ctx, h.teacher(), h.homeworkInput(h.clk.t.Add(time.Hour)))
	require.NoError(t, err)
	task, err := h.homework.AddTask(ctx, h.teacher(), hw.ID, TaskInput{Title: "Task"})
	require.NoError(t, err)

	_, err = h.homework.AddQuestions(ctx, h.teacher(), task.ID, []QuestionInput{
		choiceQuestion(1, "1", "3"),
		choiceQuestion(1, "9"),
	})
	assert.ErrorAs(t, err, &ve)

	_, err = h.homework.AddQuestions(ctx, h.teacher(), task.ID, []QuestionInput{
		{QuestionType: model.ShortAnswer, Text: "Capital of France?"},
	})
	assert.ErrorAs(t, err, &ve, "short answer needs accepted answers")

	n, err := h.homework.HomeworkRepo.CountQuestions(ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAutoCloseClosesOverdueHomework(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	in := h.homeworkInput(h.clk.t.Add(-2 * time.Hour))
	closeAt := h.clk.t.Add(-time.Hour)
	in.CloseAt = &closeAt
	overdue := publish(t, h, in, choiceQuestion(1, "1"))

	open := publish(t, h, h.homeworkInput(h.clk.t.Add(72*time.Hour)), choiceQuestion(1, "1"))

	closed, err := h.homework.AutoClose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	hw, err := h.homework.HomeworkRepo.FindByID(ctx, overdue.Homework.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HomeworkClosed, hw.Status)

	hw, err = h.homework.HomeworkRepo.FindByID(ctx, open.Homework.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HomeworkPublished, hw.Status)

	closed, err = h.homework.AutoClose(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestStudentViewHidesAnswerKey(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	draft, err := h.homework.CreateHomework(ctx, h.teacher(), h.homeworkInput(h.clk.t.Add(time.Hour)))
	require.NoError(t, err)
	_, err = h.homework.GetHomework(ctx, h.student(0), draft.ID)
	var nf *util.NotFoundError
	assert.ErrorAs(t, err, &nf)

	p := publish(t, h, h.homeworkInput(h.clk.t.Add(time.Hour)), choiceQuestion(1, "1", "3"), openQuestion(5))

	detail, err := h.homework.GetHomework(ctx, h.student(0), p.Homework.ID)
	require.NoError(t, err)
	require.Len(t, detail.Tasks, 1)
	require.Len(t, detail.Tasks[0].Questions, 2)
	for _, q := range detail.Tasks[0].Questions {
		assert.Empty(t, q.CorrectOptionIDs)
		assert.Empty(t, q.GradingRubric)
	}

	detail, err = h.homework.GetHomework(ctx, h.teacher(), p.Homework.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, []string(detail.Tasks[0].Questions[0].CorrectOptionIDs))

	list, total, err := h.homework.ListHomework(ctx, h.student(0), "", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "drafts are hidden from students")
	require.Len(t, list, 1)
	assert.Equal(t, p.Homework.ID, list[0].ID)
}
