package grading

import (
	"time"

	"ai_mentor_backend/internal/model"
)

// IsLate 严格晚于截止时间才算迟交
func IsLate(submittedAt, dueDate time.Time) bool {
	return !dueDate.IsZero() && submittedAt.After(dueDate)
}

// ApplyPenalty 迟交时按系数折算
func ApplyPenalty(raw float64, late bool, factor float64) float64 {
	if !late {
		return raw
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return raw * factor
}

// Snapshot 提交时记录是否迟交与当时的扣分系数，之后修改作业不影响已提交的分数
func Snapshot(sub *model.StudentTaskSubmission, hw *model.Homework, submittedAt time.Time) {
	sub.SubmittedAt = &submittedAt
	sub.IsLate = IsLate(submittedAt, hw.DueDate)
	sub.LatePenaltyFactor = hw.LatePenaltyFactor
	if sub.LatePenaltyFactor <= 0 || sub.LatePenaltyFactor > 1 {
		sub.LatePenaltyFactor = 1
	}
}

// Finalize 全部判分后写入原始分与最终分并置为 GRADED。
// 最终分总是由原始分算出，扣分只生效一次；未就绪或已完成时返回 false
func Finalize(sub *model.StudentTaskSubmission, sum Summary, now time.Time) bool {
	if sub.Status == model.SubmissionGraded && sub.PenaltyApplied {
		return false
	}
	if !sum.Complete() {
		return false
	}
	if !CanTransition(sub.Status, model.SubmissionGraded) {
		return false
	}

	raw := sum.Earned
	final := ApplyPenalty(raw, sub.IsLate, sub.LatePenaltyFactor)
	sub.RawScore = &raw
	sub.FinalScore = &final
	sub.MaxScore = sum.Max
	sub.PenaltyApplied = true
	sub.Status = model.SubmissionGraded
	sub.GradedAt = &now
	return true
}
