package repository

import (
	"context"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: tx}
}

// Create 唯一约束 (student_id, task_id) 冲突时返回 ConflictError
func (r *SubmissionRepository) Create(ctx context.Context, sub *model.StudentTaskSubmission) error {
	if err := r.DB.WithContext(ctx).Create(sub).Error; err != nil {
		if util.IsDuplicateKey(err) {
			return util.NewConflictError("submission", "task already started")
		}
		return err
	}
	return nil
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.StudentTaskSubmission, error) {
	var sub model.StudentTaskSubmission
	if err := r.DB.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "submission", id)
	}
	return &sub, nil
}

func (r *SubmissionRepository) FindByStudentTask(ctx context.Context, studentID, taskID uint) (*model.StudentTaskSubmission, error) {
	var sub model.StudentTaskSubmission
	err := r.DB.WithContext(ctx).Where("student_id = ? AND task_id = ?", studentID, taskID).First(&sub).Error
	if err != nil {
		return nil, util.TranslateDBError(err, "submission", nil)
	}
	return &sub, nil
}

// FindForUpdate 在事务中加行锁读取，sqlite 下忽略锁子句
func (r *SubmissionRepository) FindForUpdate(ctx context.Context, id uint) (*model.StudentTaskSubmission, error) {
	var sub model.StudentTaskSubmission
	query := r.DB.WithContext(ctx)
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&sub, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "submission", id)
	}
	return &sub, nil
}

func (r *SubmissionRepository) Update(ctx context.Context, sub *model.StudentTaskSubmission) error {
	return r.DB.WithContext(ctx).Save(sub).Error
}

func (r *SubmissionRepository) ListByStudentHomework(ctx context.Context, studentID, homeworkID uint) ([]model.StudentTaskSubmission, error) {
	var subs []model.StudentTaskSubmission
	err := r.DB.WithContext(ctx).Where("student_id = ? AND homework_id = ?", studentID, homeworkID).
		Order("task_id").Find(&subs).Error
	return subs, err
}

// ---- answers ----

// UpsertAnswer 每题仅保留一条作答
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, answer *model.StudentTaskAnswer) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_option_ids", "answer_text", "updated_at"}),
	}).Create(answer).Error
}

func (r *SubmissionRepository) FindAnswer(ctx context.Context, id uint) (*model.StudentTaskAnswer, error) {
	var a model.StudentTaskAnswer
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "answer", id)
	}
	return &a, nil
}

func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID uint) ([]model.StudentTaskAnswer, error) {
	var answers []model.StudentTaskAnswer
	err := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Order("question_id").Find(&answers).Error
	return answers, err
}

func (r *SubmissionRepository) SaveAnswer(ctx context.Context, answer *model.StudentTaskAnswer) error {
	return r.DB.WithContext(ctx).Save(answer).Error
}

// ReviewItem 待人工批改的作答
type ReviewItem struct {
	AnswerID         uint       `json:"answerId"`
	SubmissionID     uint       `json:"submissionId"`
	QuestionID       uint       `json:"questionId"`
	StudentID        uint       `json:"studentId"`
	HomeworkID       uint       `json:"homeworkId"`
	TaskID           uint       `json:"taskId"`
	QuestionText     string     `json:"questionText"`
	AnswerText       string     `json:"answerText"`
	AIFeedback       string     `json:"aiFeedback,omitempty"`
	AIConfidence     *float64   `json:"aiConfidence,omitempty"`
	AISuggestedScore *float64   `json:"aiSuggestedScore,omitempty"`
	SubmittedAt      *time.Time `json:"submittedAt"`
}

// ListReviewQueue 老师所带班级中待批改的开放题
func (r *SubmissionRepository) ListReviewQueue(ctx context.Context, classIDs []uint, homeworkID uint, page, limit int) ([]ReviewItem, int64, error) {
	items := []ReviewItem{}
	if len(classIDs) == 0 {
		return items, 0, nil
	}
	query := r.DB.WithContext(ctx).Table("student_task_answers a").
		Joins("JOIN student_task_submissions s ON s.id = a.submission_id").
		Joins("JOIN homeworks h ON h.id = s.homework_id AND h.deleted_at IS NULL").
		Joins("JOIN homework_task_questions q ON q.id = a.question_id").
		Where("s.status = ? AND a.score IS NULL", model.SubmissionNeedsReview).
		Where("h.class_id IN ?", classIDs)
	if homeworkID > 0 {
		query = query.Where("h.id = ?", homeworkID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Select(`a.id AS answer_id, a.submission_id, a.question_id, s.student_id, s.homework_id, s.task_id,
		q.text AS question_text, a.answer_text, a.ai_feedback, a.ai_confidence, a.ai_suggested_score, s.submitted_at`).
		Order("s.submitted_at, a.id").
		Offset((page - 1) * limit).Limit(limit).
		Scan(&items).Error
	return items, total, err
}

// SubmittedTimes 学生提交作业的时间，用于活跃度统计
func (r *SubmissionRepository) SubmittedTimes(ctx context.Context, studentID uint, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.DB.WithContext(ctx).Model(&model.StudentTaskSubmission{}).
		Where("student_id = ? AND submitted_at IS NOT NULL AND submitted_at >= ?", studentID, since).
		Order("submitted_at").
		Pluck("submitted_at", &times).Error
	return times, err
}
