package grading

import (
	"testing"

	"ai_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionTransitions(t *testing.T) {
	allowed := [][2]model.SubmissionStatus{
		{model.SubmissionNotStarted, model.SubmissionInProgress},
		{model.SubmissionInProgress, model.SubmissionSubmitted},
		{model.SubmissionSubmitted, model.SubmissionGraded},
		{model.SubmissionSubmitted, model.SubmissionNeedsReview},
		{model.SubmissionNeedsReview, model.SubmissionGraded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]model.SubmissionStatus{
		{model.SubmissionGraded, model.SubmissionInProgress},
		{model.SubmissionGraded, model.SubmissionNeedsReview},
		{model.SubmissionInProgress, model.SubmissionGraded},
		{model.SubmissionNeedsReview, model.SubmissionSubmitted},
		{model.SubmissionNotStarted, model.SubmissionSubmitted},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestHomeworkTransitions(t *testing.T) {
	assert.True(t, CanTransitionHomework(model.HomeworkDraft, model.HomeworkPublished))
	assert.True(t, CanTransitionHomework(model.HomeworkPublished, model.HomeworkClosed))

	assert.False(t, CanTransitionHomework(model.HomeworkDraft, model.HomeworkClosed))
	assert.False(t, CanTransitionHomework(model.HomeworkPublished, model.HomeworkDraft))
	assert.False(t, CanTransitionHomework(model.HomeworkClosed, model.HomeworkPublished))
	assert.False(t, CanTransitionHomework(model.HomeworkClosed, model.HomeworkDraft))
}

func TestAfterSubmit(t *testing.T) {
	assert.Equal(t, model.SubmissionGraded, AfterSubmit(Summary{}))
	assert.Equal(t, model.SubmissionNeedsReview, AfterSubmit(Summary{Pending: 2}))
}
