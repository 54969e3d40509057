package grading

import "ai_mentor_backend/internal/model"

var submissionTransitions = map[model.SubmissionStatus][]model.SubmissionStatus{
	model.SubmissionNotStarted:  {model.SubmissionInProgress},
	model.SubmissionInProgress:  {model.SubmissionSubmitted},
	model.SubmissionSubmitted:   {model.SubmissionGraded, model.SubmissionNeedsReview},
	model.SubmissionNeedsReview: {model.SubmissionGraded},
}

func CanTransition(from, to model.SubmissionStatus) bool {
	for _, next := range submissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var homeworkTransitions = map[model.HomeworkStatus]model.HomeworkStatus{
	model.HomeworkDraft:     model.HomeworkPublished,
	model.HomeworkPublished: model.HomeworkClosed,
}

// CanTransitionHomework 只允许 DRAFT -> PUBLISHED -> CLOSED
func CanTransitionHomework(from, to model.HomeworkStatus) bool {
	next, ok := homeworkTransitions[from]
	return ok && next == to
}

// AfterSubmit 提交后的状态：有待批改的题进入 NEEDS_REVIEW
func AfterSubmit(sum Summary) model.SubmissionStatus {
	if sum.Complete() {
		return model.SubmissionGraded
	}
	return model.SubmissionNeedsReview
}
