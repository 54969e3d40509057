package repository

import (
	"context"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HomeworkRepository struct {
	DB *gorm.DB
}

func NewHomeworkRepository(db *gorm.DB) *HomeworkRepository {
	return &HomeworkRepository{DB: db}
}

func (r *HomeworkRepository) WithTx(tx *gorm.DB) *HomeworkRepository {
	return &HomeworkRepository{DB: tx}
}

func (r *HomeworkRepository) Create(ctx context.Context, hw *model.Homework) error {
	return r.DB.WithContext(ctx).Create(hw).Error
}

func (r *HomeworkRepository) FindByID(ctx context.Context, id uint) (*model.Homework, error) {
	var hw model.Homework
	if err := r.DB.WithContext(ctx).First(&hw, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "homework", id)
	}
	return &hw, nil
}

// FindForShare 提交与关闭互斥：关闭作业的条件更新会等待共享锁释放
func (r *HomeworkRepository) FindForShare(ctx context.Context, id uint) (*model.Homework, error) {
	var hw model.Homework
	query := r.DB.WithContext(ctx)
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "SHARE"})
	}
	if err := query.First(&hw, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "homework", id)
	}
	return &hw, nil
}

// Update 只更新传入的字段
func (r *HomeworkRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Homework{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus 带前置状态条件的状态更新，返回受影响行数
func (r *HomeworkRepository) TransitionStatus(ctx context.Context, id uint, from, to model.HomeworkStatus, at time.Time) (int64, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case model.HomeworkPublished:
		updates["published_at"] = at
	case model.HomeworkClosed:
		updates["closed_at"] = at
	}
	res := r.DB.WithContext(ctx).Model(&model.Homework{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// HomeworkFilter 作业列表筛选
type HomeworkFilter struct {
	SchoolID  uint
	ClassIDs  []uint
	TeacherID uint
	Status    model.HomeworkStatus
	// PublishedOnly 学生视角，排除草稿
	PublishedOnly bool
}

func (r *HomeworkRepository) List(ctx context.Context, filter HomeworkFilter, page, limit int) ([]model.Homework, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Homework{})
	if filter.SchoolID > 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.ClassIDs != nil {
		if len(filter.ClassIDs) == 0 {
			return []model.Homework{}, 0, nil
		}
		query = query.Where("class_id IN ?", filter.ClassIDs)
	}
	if filter.TeacherID > 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PublishedOnly {
		query = query.Where("status <> ?", model.HomeworkDraft)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Homework
	err := query.Order("due_date DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error
	return items, total, err
}

// ListDueForClose 已发布且关闭时间已过的作业
func (r *HomeworkRepository) ListDueForClose(ctx context.Context, now time.Time) ([]model.Homework, error) {
	var items []model.Homework
	err := r.DB.WithContext(ctx).
		Where("status = ? AND close_at IS NOT NULL AND close_at <= ?", model.HomeworkPublished, now).
		Order("close_at").
		Find(&items).Error
	return items, err
}

// ---- tasks ----

func (r *HomeworkRepository) CreateTask(ctx context.Context, task *model.HomeworkTask) error {
	if task.Position == 0 {
		var count int64
		if err := r.DB.WithContext(ctx).Model(&model.HomeworkTask{}).
			Where("homework_id = ?", task.HomeworkID).Count(&count).Error; err != nil {
			return err
		}
		task.Position = int(count) + 1
	}
	return r.DB.WithContext(ctx).Create(task).Error
}

func (r *HomeworkRepository) FindTask(ctx context.Context, id uint) (*model.HomeworkTask, error) {
	var task model.HomeworkTask
	if err := r.DB.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "task", id)
	}
	return &task, nil
}

func (r *HomeworkRepository) ListTasks(ctx context.Context, homeworkID uint) ([]model.HomeworkTask, error) {
	var tasks []model.HomeworkTask
	err := r.DB.WithContext(ctx).Where("homework_id = ?", homeworkID).Order("position, id").Find(&tasks).Error
	return tasks, err
}

func (r *HomeworkRepository) CountTasks(ctx context.Context, homeworkID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.HomeworkTask{}).Where("homework_id = ?", homeworkID).Count(&count).Error
	return count, err
}

// ---- questions ----

func (r *HomeworkRepository) CreateQuestions(ctx context.Context, taskID uint, questions []model.HomeworkTaskQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	var count int64
	if err := r.DB.WithContext(ctx).Model(&model.HomeworkTaskQuestion{}).
		Where("task_id = ?", taskID).Count(&count).Error; err != nil {
		return err
	}
	for i := range questions {
		questions[i].TaskID = taskID
		questions[i].Position = int(count) + i + 1
	}
	return r.DB.WithContext(ctx).Create(&questions).Error
}

func (r *HomeworkRepository) FindQuestion(ctx context.Context, id uint) (*model.HomeworkTaskQuestion, error) {
	var q model.HomeworkTaskQuestion
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "question", id)
	}
	return &q, nil
}

func (r *HomeworkRepository) ListQuestions(ctx context.Context, taskID uint) ([]model.HomeworkTaskQuestion, error) {
	var qs []model.HomeworkTaskQuestion
	err := r.DB.WithContext(ctx).Where("task_id = ?", taskID).Order("position, id").Find(&qs).Error
	return qs, err
}

func (r *HomeworkRepository) CountQuestions(ctx context.Context, taskID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.HomeworkTaskQuestion{}).Where("task_id = ?", taskID).Count(&count).Error
	return count, err
}

func (r *HomeworkRepository) DeleteQuestion(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Unscoped().Delete(&model.HomeworkTaskQuestion{}, id).Error
}
