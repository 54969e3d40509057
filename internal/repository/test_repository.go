package repository

import (
	"context"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) WithTx(tx *gorm.DB) *TestRepository {
	return &TestRepository{DB: tx}
}

// CreateWithQuestions 一次性写入试卷和题目
func (r *TestRepository) CreateWithQuestions(ctx context.Context, test *model.Test, questions []model.TestQuestion) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(test).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].TestID = test.ID
			if questions[i].Position == 0 {
				questions[i].Position = i + 1
			}
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
}

func (r *TestRepository) FindByID(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	if err := r.DB.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "test", id)
	}
	return &test, nil
}

// TestFilter 试卷列表筛选
type TestFilter struct {
	SchoolID    *uint
	ChapterID   uint
	ParagraphID uint
	ActiveOnly  bool
}

func (r *TestRepository) List(ctx context.Context, filter TestFilter) ([]model.Test, error) {
	query := r.DB.WithContext(ctx).Model(&model.Test{})
	if filter.SchoolID != nil {
		query = query.Where("school_id IS NULL OR school_id = ?", *filter.SchoolID)
	}
	if filter.ChapterID > 0 {
		query = query.Where("chapter_id = ?", filter.ChapterID)
	}
	if filter.ParagraphID > 0 {
		query = query.Where("paragraph_id = ?", filter.ParagraphID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	var tests []model.Test
	err := query.Order("id DESC").Find(&tests).Error
	return tests, err
}

func (r *TestRepository) Update(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Save(test).Error
}

func (r *TestRepository) ListQuestions(ctx context.Context, testID uint) ([]model.TestQuestion, error) {
	var qs []model.TestQuestion
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("position, id").Find(&qs).Error
	return qs, err
}

// ---- attempts ----

func (r *TestRepository) NextAttemptNumber(ctx context.Context, studentID, testID uint) (int, error) {
	var maxNumber *int
	err := r.DB.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("student_id = ? AND test_id = ?", studentID, testID).
		Select("MAX(attempt_number)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, err
	}
	if maxNumber == nil {
		return 1, nil
	}
	return *maxNumber + 1, nil
}

func (r *TestRepository) FindOpenAttempt(ctx context.Context, studentID, testID uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND test_id = ? AND status = ?", studentID, testID, model.AttemptInProgress).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		return nil, util.TranslateDBError(err, "attempt", nil)
	}
	return &attempt, nil
}

func (r *TestRepository) CreateAttempt(ctx context.Context, attempt *model.TestAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *TestRepository) FindAttempt(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	if err := r.DB.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "attempt", id)
	}
	return &attempt, nil
}

func (r *TestRepository) UpdateAttempt(ctx context.Context, attempt *model.TestAttempt) error {
	return r.DB.WithContext(ctx).Save(attempt).Error
}

func (r *TestRepository) SaveAnswers(ctx context.Context, answers []model.TestAttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&answers).Error
}

func (r *TestRepository) ListAnswers(ctx context.Context, attemptID uint) ([]model.TestAttemptAnswer, error) {
	var answers []model.TestAttemptAnswer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("question_id").Find(&answers).Error
	return answers, err
}

func (r *TestRepository) ListAttemptsOfStudent(ctx context.Context, studentID uint, testID uint) ([]model.TestAttempt, error) {
	query := r.DB.WithContext(ctx).Where("student_id = ?", studentID)
	if testID > 0 {
		query = query.Where("test_id = ?", testID)
	}
	var attempts []model.TestAttempt
	err := query.Order("id DESC").Find(&attempts).Error
	return attempts, err
}

// GradedAttempt 参与掌握度计算的已评分作答
type GradedAttempt struct {
	ID       uint
	Score    float64
	GradedAt time.Time
	Purpose  model.TestPurpose
}

func (r *TestRepository) gradedAttempts(ctx context.Context, studentID uint, unitColumn string, unitID uint) ([]GradedAttempt, error) {
	var rows []GradedAttempt
	err := r.DB.WithContext(ctx).Table("test_attempts a").
		Select("a.id AS id, a.score AS score, a.graded_at AS graded_at, t.purpose AS purpose").
		Joins("JOIN tests t ON t.id = a.test_id").
		Where("a.student_id = ? AND a.status = ? AND a.score IS NOT NULL", studentID, model.AttemptGraded).
		Where("t."+unitColumn+" = ?", unitID).
		Order("a.graded_at, a.id").
		Scan(&rows).Error
	return rows, err
}

// GradedAttemptsForParagraph 学生在某段落相关测试上的全部已评分作答
func (r *TestRepository) GradedAttemptsForParagraph(ctx context.Context, studentID, paragraphID uint) ([]GradedAttempt, error) {
	return r.gradedAttempts(ctx, studentID, "paragraph_id", paragraphID)
}

// GradedAttemptsForChapter 包含章节测试和该章节下的段落测试
func (r *TestRepository) GradedAttemptsForChapter(ctx context.Context, studentID, chapterID uint) ([]GradedAttempt, error) {
	return r.gradedAttempts(ctx, studentID, "chapter_id", chapterID)
}

// StudentsWithGradedAttempts 用于批量重算
func (r *TestRepository) StudentsWithGradedAttempts(ctx context.Context, schoolID *uint) ([]uint, error) {
	query := r.DB.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("status = ?", model.AttemptGraded)
	if schoolID != nil {
		query = query.Where("school_id = ?", *schoolID)
	}
	var ids []uint
	err := query.Distinct("student_id").Order("student_id").Pluck("student_id", &ids).Error
	return ids, err
}

// UnitsAttempted 学生有已评分作答的章节与段落
func (r *TestRepository) UnitsAttempted(ctx context.Context, studentID uint) (chapterIDs, paragraphIDs []uint, err error) {
	base := r.DB.WithContext(ctx).Table("test_attempts a").
		Joins("JOIN tests t ON t.id = a.test_id").
		Where("a.student_id = ? AND a.status = ?", studentID, model.AttemptGraded)

	if err = base.Session(&gorm.Session{}).Distinct("t.chapter_id").Pluck("t.chapter_id", &chapterIDs).Error; err != nil {
		return nil, nil, err
	}
	err = base.Session(&gorm.Session{}).Where("t.paragraph_id IS NOT NULL").Distinct("t.paragraph_id").Pluck("t.paragraph_id", &paragraphIDs).Error
	return chapterIDs, paragraphIDs, err
}

// GradedAttemptTimes 活跃度统计使用的评分时间
func (r *TestRepository) GradedAttemptTimes(ctx context.Context, studentID uint, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.DB.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("student_id = ? AND status = ? AND graded_at >= ?", studentID, model.AttemptGraded, since).
		Order("graded_at").
		Pluck("graded_at", &times).Error
	return times, err
}
