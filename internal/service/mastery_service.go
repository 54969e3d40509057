package service

import (
	"context"
	"sync"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/mastery"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// streakLookback 计算连续天数时回看的最长天数
const streakLookback = 365

// Transition 一次等级变化
type Transition struct {
	UnitType model.UnitType     `json:"unitType"`
	UnitID   uint               `json:"unitId"`
	Previous *model.MasteryTier `json:"previous"`
	Current  model.MasteryTier  `json:"current"`
}

// MasteryService 掌握度计算与查询
type MasteryService struct {
	DB             *gorm.DB
	TestRepo       *repository.TestRepository
	MasteryRepo    *repository.MasteryRepository
	SubmissionRepo *repository.SubmissionRepository
	UserRepo       *repository.UserRepository
	ContentRepo    *repository.ContentRepository
	Access         *Access

	mu           sync.RWMutex
	classifier   *mastery.Classifier
	streakTarget int
	window       int

	now func() time.Time
}

func NewMasteryService(db *gorm.DB, cfg config.MasteryConfig, access *Access) *MasteryService {
	s := &MasteryService{
		DB:             db,
		TestRepo:       repository.NewTestRepository(db),
		MasteryRepo:    repository.NewMasteryRepository(db),
		SubmissionRepo: repository.NewSubmissionRepository(db),
		UserRepo:       repository.NewUserRepository(db),
		ContentRepo:    repository.NewContentRepository(db),
		Access:         access,
		now:            time.Now,
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig 热更新阈值与窗口
func (s *MasteryService) ApplyConfig(cfg config.MasteryConfig) {
	c := mastery.NewClassifier()
	if cfg.TierAThreshold > 0 {
		c.TierA = cfg.TierAThreshold
	}
	if cfg.TierBThreshold > 0 {
		c.TierB = cfg.TierBThreshold
	}
	for purpose, n := range cfg.Windows {
		p := model.TestPurpose(purpose)
		if p.Valid() && n >= 0 {
			c.Windows[p] = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier = c
	s.streakTarget = cfg.StreakTarget
	s.window = cfg.ActivityWindow
}

func (s *MasteryService) current() (*mastery.Classifier, int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier, s.streakTarget, s.window
}

// RecomputeForAttempt 一次作答评分后重算相关单元；tx 为调用方的事务
// 段落测试同时更新段落和所属章节，章节测试只更新章节
func (s *MasteryService) RecomputeForAttempt(ctx context.Context, tx *gorm.DB, studentID uint, test *model.Test, attemptID uint) ([]Transition, error) {
	var transitions []Transition
	if test.ParagraphID != nil {
		t, err := s.recompute(ctx, tx, studentID, model.UnitParagraph, *test.ParagraphID, test.Purpose, attemptID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			transitions = append(transitions, *t)
		}
	}
	t, err := s.recompute(ctx, tx, studentID, model.UnitChapter, test.ChapterID, test.Purpose, attemptID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		transitions = append(transitions, *t)
	}
	return transitions, nil
}

// recompute 按触发测试的目的选择窗口，对该单元所有已评分作答重新分级
func (s *MasteryService) recompute(ctx context.Context, tx *gorm.DB, studentID uint, unit model.UnitType, unitID uint, purpose model.TestPurpose, attemptID uint) (*Transition, error) {
	tests := s.TestRepo.WithTx(tx)
	masteries := s.MasteryRepo.WithTx(tx)
	classifier, _, _ := s.current()

	var rows []repository.GradedAttempt
	var err error
	if unit == model.UnitParagraph {
		rows, err = tests.GradedAttemptsForParagraph(ctx, studentID, unitID)
	} else {
		rows, err = tests.GradedAttemptsForChapter(ctx, studentID, unitID)
	}
	if err != nil {
		return nil, err
	}

	attempts := make([]mastery.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, mastery.Attempt{ID: r.ID, Score: r.Score, GradedAt: r.GradedAt})
	}
	res, ok := classifier.Classify(attempts, purpose)

	var previous *model.MasteryTier
	if unit == model.UnitParagraph {
		existing, err := masteries.FindParagraph(ctx, studentID, unitID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			previous = &existing.Tier
		}
		if !ok {
			return nil, masteries.DeleteParagraph(ctx, studentID, unitID)
		}
		err = masteries.UpsertParagraph(ctx, &model.ParagraphMastery{
			StudentID:          studentID,
			ParagraphID:        unitID,
			Tier:               res.Tier,
			AverageScore:       res.AverageScore,
			AttemptsConsidered: res.AttemptsConsidered,
			LastAttemptID:      res.LastAttemptID,
		})
		if err != nil {
			return nil, err
		}
	} else {
		existing, err := masteries.FindChapter(ctx, studentID, unitID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			previous = &existing.Tier
		}
		if !ok {
			return nil, masteries.DeleteChapter(ctx, studentID, unitID)
		}
		err = masteries.UpsertChapter(ctx, &model.ChapterMastery{
			StudentID:          studentID,
			ChapterID:          unitID,
			Tier:               res.Tier,
			AverageScore:       res.AverageScore,
			AttemptsConsidered: res.AttemptsConsidered,
			LastAttemptID:      res.LastAttemptID,
		})
		if err != nil {
			return nil, err
		}
	}

	if previous != nil && *previous == res.Tier {
		return nil, nil
	}

	if attemptID == 0 {
		attemptID = res.LastAttemptID
	}
	err = masteries.AppendHistory(ctx, &model.MasteryHistory{
		StudentID:    studentID,
		UnitType:     unit,
		UnitID:       unitID,
		PreviousTier: previous,
		NewTier:      res.Tier,
		AverageScore: res.AverageScore,
		AttemptID:    attemptID,
		RecordedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	monitoring.MasteryTransitions.WithLabelValues(string(unit), string(res.Tier)).Inc()
	return &Transition{UnitType: unit, UnitID: unitID, Previous: previous, Current: res.Tier}, nil
}

// RecomputeStudent 从全部作答重建某学生的等级，使用每个单元最近一次作答所属测试的目的
func (s *MasteryService) RecomputeStudent(ctx context.Context, studentID uint) ([]Transition, error) {
	var transitions []Transition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tests := s.TestRepo.WithTx(tx)
		chapterIDs, paragraphIDs, err := tests.UnitsAttempted(ctx, studentID)
		if err != nil {
			return err
		}

		for _, pid := range paragraphIDs {
			rows, err := tests.GradedAttemptsForParagraph(ctx, studentID, pid)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				continue
			}
			t, err := s.recompute(ctx, tx, studentID, model.UnitParagraph, pid, rows[len(rows)-1].Purpose, 0)
			if err != nil {
				return err
			}
			if t != nil {
				transitions = append(transitions, *t)
			}
		}
		for _, cid := range chapterIDs {
			rows, err := tests.GradedAttemptsForChapter(ctx, studentID, cid)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				continue
			}
			t, err := s.recompute(ctx, tx, studentID, model.UnitChapter, cid, rows[len(rows)-1].Purpose, 0)
			if err != nil {
				return err
			}
			if t != nil {
				transitions = append(transitions, *t)
			}
		}
		return nil
	})
	return transitions, err
}

// RecomputeSchool 批量重算，schoolID 为 nil 表示全部学校
func (s *MasteryService) RecomputeSchool(ctx context.Context, schoolID *uint) (int, int, error) {
	students, err := s.TestRepo.StudentsWithGradedAttempts(ctx, schoolID)
	if err != nil {
		return 0, 0, err
	}
	changes := 0
	for _, id := range students {
		ts, err := s.RecomputeStudent(ctx, id)
		if err != nil {
			logger.Log.Error("重算掌握度失败", zap.Uint("studentID", id), zap.Error(err))
			return len(students), changes, err
		}
		changes += len(ts)
	}
	return len(students), changes, nil
}

// ---- queries ----

// StudentMastery 学生各章节与段落等级
type StudentMastery struct {
	StudentID  uint                     `json:"studentId"`
	Chapters   []model.ChapterMastery   `json:"chapters"`
	Paragraphs []model.ParagraphMastery `json:"paragraphs"`
	Engagement mastery.Engagement       `json:"engagement"`
}

func (s *MasteryService) viewableStudent(ctx context.Context, actor Actor, studentID uint) (*model.User, error) {
	student, err := s.UserRepo.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.Access.ViewStudent(ctx, actor, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *MasteryService) GetStudentMastery(ctx context.Context, actor Actor, studentID uint) (*StudentMastery, error) {
	if _, err := s.viewableStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}
	chapters, err := s.MasteryRepo.ListChaptersOfStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	paragraphs, err := s.MasteryRepo.ListParagraphsOfStudent(ctx, studentID, 0)
	if err != nil {
		return nil, err
	}
	engagement, err := s.Engagement(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &StudentMastery{StudentID: studentID, Chapters: chapters, Paragraphs: paragraphs, Engagement: engagement}, nil
}

func (s *MasteryService) GetHistory(ctx context.Context, actor Actor, studentID uint, unit model.UnitType, unitID uint) ([]model.MasteryHistory, error) {
	if _, err := s.viewableStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.MasteryRepo.ListHistory(ctx, studentID, unit, unitID)
}

// Engagement 活跃天 = 有已评分测试或作业提交的自然日
func (s *MasteryService) Engagement(ctx context.Context, studentID uint) (mastery.Engagement, error) {
	_, target, window := s.current()
	now := s.now()
	since := now.AddDate(0, 0, -streakLookback)

	attempts, err := s.TestRepo.GradedAttemptTimes(ctx, studentID, since)
	if err != nil {
		return mastery.Engagement{}, err
	}
	submissions, err := s.SubmissionRepo.SubmittedTimes(ctx, studentID, since)
	if err != nil {
		return mastery.Engagement{}, err
	}
	activity := append(attempts, submissions...)
	return mastery.ComputeEngagement(activity, now, target, window), nil
}
