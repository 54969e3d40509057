package repository

import (
	"context"
	"time"

	"ai_mentor_backend/internal/model"

	"gorm.io/gorm"
)

// AnalyticsRepository 只读聚合查询
type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// TierCount 某章节某等级的人数
type TierCount struct {
	ChapterID uint              `json:"chapterId"`
	Tier      model.MasteryTier `json:"tier"`
	Count     int64             `json:"count"`
}

// ChapterTierCounts 按章节和等级统计一批学生的掌握度
func (r *AnalyticsRepository) ChapterTierCounts(ctx context.Context, studentIDs []uint, textbookID uint) ([]TierCount, error) {
	rows := []TierCount{}
	if len(studentIDs) == 0 {
		return rows, nil
	}
	query := r.DB.WithContext(ctx).Table("chapter_masteries cm").
		Select("cm.chapter_id AS chapter_id, cm.tier AS tier, COUNT(*) AS count").
		Where("cm.student_id IN ?", studentIDs)
	if textbookID > 0 {
		query = query.Joins("JOIN chapters c ON c.id = cm.chapter_id").Where("c.textbook_id = ?", textbookID)
	}
	err := query.Group("cm.chapter_id, cm.tier").Order("cm.chapter_id, cm.tier").Scan(&rows).Error
	return rows, err
}

// HistorySince 一批学生在窗口期内的等级变化记录
func (r *AnalyticsRepository) HistorySince(ctx context.Context, studentIDs []uint, unitType model.UnitType, since time.Time) ([]model.MasteryHistory, error) {
	rows := []model.MasteryHistory{}
	if len(studentIDs) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).
		Where("student_id IN ? AND unit_type = ? AND recorded_at >= ?", studentIDs, unitType, since).
		Order("recorded_at, id").
		Find(&rows).Error
	return rows, err
}

// HomeworkStatusCount 作业提交状态计数
type HomeworkStatusCount struct {
	Status model.SubmissionStatus `json:"status"`
	Count  int64                  `json:"count"`
}

func (r *AnalyticsRepository) SubmissionStatusCounts(ctx context.Context, homeworkID uint) ([]HomeworkStatusCount, error) {
	rows := []HomeworkStatusCount{}
	err := r.DB.WithContext(ctx).Model(&model.StudentTaskSubmission{}).
		Select("status, COUNT(*) AS count").
		Where("homework_id = ?", homeworkID).
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

// HomeworkScoreStats 已批改提交的分数统计
type HomeworkScoreStats struct {
	Graded       int64    `json:"graded"`
	AverageFinal *float64 `json:"averageFinal"`
	AverageRaw   *float64 `json:"averageRaw"`
	LateCount    int64    `json:"lateCount"`
}

func (r *AnalyticsRepository) HomeworkScores(ctx context.Context, homeworkID uint) (*HomeworkScoreStats, error) {
	var stats HomeworkScoreStats
	err := r.DB.WithContext(ctx).Model(&model.StudentTaskSubmission{}).
		Select(`COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS graded,
			AVG(CASE WHEN status = ? THEN final_score * 100.0 / max_score END) AS average_final,
			AVG(CASE WHEN status = ? THEN raw_score * 100.0 / max_score END) AS average_raw,
			COALESCE(SUM(CASE WHEN is_late THEN 1 ELSE 0 END), 0) AS late_count`,
			model.SubmissionGraded, model.SubmissionGraded, model.SubmissionGraded).
		Where("homework_id = ? AND max_score > 0", homeworkID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CountSubmittedStudents 提交过至少一个任务的学生数
func (r *AnalyticsRepository) CountSubmittedStudents(ctx context.Context, homeworkID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.StudentTaskSubmission{}).
		Where("homework_id = ? AND submitted_at IS NOT NULL", homeworkID).
		Distinct("student_id").
		Count(&count).Error
	return count, err
}

// ChapterMasteries 一批学生在某教材下的章节掌握度，textbookID 为 0 时不过滤
func (r *AnalyticsRepository) ChapterMasteries(ctx context.Context, studentIDs []uint, textbookID uint) ([]model.ChapterMastery, error) {
	rows := []model.ChapterMastery{}
	if len(studentIDs) == 0 {
		return rows, nil
	}
	query := r.DB.WithContext(ctx).Model(&model.ChapterMastery{}).
		Where("chapter_masteries.student_id IN ?", studentIDs)
	if textbookID > 0 {
		query = query.Joins("JOIN chapters c ON c.id = chapter_masteries.chapter_id").Where("c.textbook_id = ?", textbookID)
	}
	err := query.Order("chapter_masteries.student_id, chapter_masteries.chapter_id").Find(&rows).Error
	return rows, err
}
