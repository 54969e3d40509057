package service

import (
	"context"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/grading"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// swagger:model ReviewInput
type ReviewInput struct {
	Score    float64 `json:"score" binding:"gte=0"`
	Feedback string  `json:"feedback"`
}

// SubmissionDetail 提交记录及每题作答
type SubmissionDetail struct {
	Submission *model.StudentTaskSubmission `json:"submission"`
	Answers    []model.StudentTaskAnswer    `json:"answers"`
}

type SubmissionService struct {
	DB             *gorm.DB
	HomeworkRepo   *repository.HomeworkRepository
	SubmissionRepo *repository.SubmissionRepository
	SchoolRepo     *repository.SchoolRepository
	UserRepo       *repository.UserRepository
	Access         *Access
	// Grader 为空时开放题只能由老师批改
	Grader   *AIGrader
	Notifier Notifier

	now func() time.Time
}

func NewSubmissionService(db *gorm.DB, access *Access, grader *AIGrader, cfg config.GradingConfig) *SubmissionService {
	if grader != nil {
		grader.ApplyConfig(cfg)
	}
	return &SubmissionService{
		DB:             db,
		HomeworkRepo:   repository.NewHomeworkRepository(db),
		SubmissionRepo: repository.NewSubmissionRepository(db),
		SchoolRepo:     repository.NewSchoolRepository(db),
		UserRepo:       repository.NewUserRepository(db),
		Access:         access,
		Grader:         grader,
		Notifier:       noopNotifier{},
		now:            time.Now,
	}
}

// ApplyConfig 热更新 AI 采纳阈值
func (s *SubmissionService) ApplyConfig(cfg config.GradingConfig) {
	if s.Grader != nil {
		s.Grader.ApplyConfig(cfg)
	}
}

func homeworkGradingQuestion(q model.HomeworkTaskQuestion) grading.Question {
	return grading.Question{
		ID:               q.ID,
		Type:             q.QuestionType,
		Points:           q.Points,
		CorrectOptionIDs: q.CorrectOptionIDs,
		AcceptedAnswers:  q.AcceptedAnswers,
	}
}

func outcomeLabel(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

// StartTask 学生开始一个任务；并发重复开始由唯一约束拦截
func (s *SubmissionService) StartTask(ctx context.Context, actor Actor, taskID uint) (*model.StudentTaskSubmission, error) {
	if err := actor.Require(model.Student); err != nil {
		return nil, err
	}
	task, err := s.HomeworkRepo.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	hw, err := s.HomeworkRepo.FindByID(ctx, task.HomeworkID)
	if err != nil {
		return nil, err
	}
	ok, err := s.SchoolRepo.IsStudentInClass(ctx, actor.UserID, hw.ClassID)
	if err != nil {
		return nil, err
	}
	if !ok || hw.Status == model.HomeworkDraft {
		return nil, util.NewNotFoundError("task", taskID)
	}
	if hw.Status != model.HomeworkPublished {
		return nil, util.NewStateTransitionError("homework", string(hw.Status), "started")
	}

	sub := &model.StudentTaskSubmission{
		StudentID:         actor.UserID,
		TaskID:            task.ID,
		HomeworkID:        hw.ID,
		Status:            model.SubmissionInProgress,
		LatePenaltyFactor: 1,
		StartedAt:         s.now(),
	}
	if err := s.SubmissionRepo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ownSubmission 学生只能操作自己的提交
func ownSubmission(actor Actor, sub *model.StudentTaskSubmission) error {
	if !actor.IsStudent() || sub.StudentID != actor.UserID {
		return util.NewNotFoundError("submission", sub.ID)
	}
	return nil
}

// questionOfTask 题目必须属于该任务
func questionOfTask(questions map[uint]model.HomeworkTaskQuestion, id uint) error {
	if _, ok := questions[id]; !ok {
		return util.NewValidationError("questionId", "question %d does not belong to this task", id)
	}
	return nil
}

func (s *SubmissionService) taskQuestions(ctx context.Context, repo *repository.HomeworkRepository, taskID uint) ([]model.HomeworkTaskQuestion, map[uint]model.HomeworkTaskQuestion, error) {
	list, err := repo.ListQuestions(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]model.HomeworkTaskQuestion, len(list))
	for _, q := range list {
		byID[q.ID] = q
	}
	return list, byID, nil
}

// SaveAnswer 作答中可反复保存，每题一条；在提交记录的行锁内写入，避免覆盖已评分的答案
func (s *SubmissionService) SaveAnswer(ctx context.Context, actor Actor, submissionID uint, in AnswerInput) (*model.StudentTaskAnswer, error) {
	var answer *model.StudentTaskAnswer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subRepo := s.SubmissionRepo.WithTx(tx)
		hwRepo := s.HomeworkRepo.WithTx(tx)

		sub, err := subRepo.FindForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if err := ownSubmission(actor, sub); err != nil {
			return err
		}
		if sub.Status != model.SubmissionInProgress {
			return util.NewStateTransitionError("submission", string(sub.Status), "answered")
		}
		hw, err := hwRepo.FindForShare(ctx, sub.HomeworkID)
		if err != nil {
			return err
		}
		if hw.Status != model.HomeworkPublished {
			return util.NewStateTransitionError("homework", string(hw.Status), "answered")
		}
		_, questions, err := s.taskQuestions(ctx, hwRepo, sub.TaskID)
		if err != nil {
			return err
		}
		if err := questionOfTask(questions, in.QuestionID); err != nil {
			return err
		}

		answer = &model.StudentTaskAnswer{
			SubmissionID:      sub.ID,
			QuestionID:        in.QuestionID,
			SelectedOptionIDs: in.SelectedOptionIDs,
			AnswerText:        in.AnswerText,
		}
		return subRepo.UpsertAnswer(ctx, answer)
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// SubmitTask 快照迟交信息，自动评分，全部判定后计算最终分数；含开放题时进入待批改
func (s *SubmissionService) SubmitTask(ctx context.Context, actor Actor, submissionID uint, answers []AnswerInput) (*SubmissionDetail, error) {
	var (
		sub *model.StudentTaskSubmission
		hw  *model.Homework
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subRepo := s.SubmissionRepo.WithTx(tx)
		hwRepo := s.HomeworkRepo.WithTx(tx)

		var err error
		sub, err = subRepo.FindForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if err := ownSubmission(actor, sub); err != nil {
			return err
		}
		if !grading.CanTransition(sub.Status, model.SubmissionSubmitted) {
			return util.NewStateTransitionError("submission", string(sub.Status), string(model.SubmissionSubmitted))
		}
		hw, err = hwRepo.FindForShare(ctx, sub.HomeworkID)
		if err != nil {
			return err
		}
		if hw.Status != model.HomeworkPublished {
			return util.NewStateTransitionError("homework", string(hw.Status), "submitted")
		}

		now := s.now()
		if grading.IsLate(now, hw.DueDate) && !hw.AllowLate {
			return util.NewValidationError("dueDate", "homework is past due and late submissions are not allowed")
		}

		questions, byID, err := s.taskQuestions(ctx, hwRepo, sub.TaskID)
		if err != nil {
			return err
		}
		for _, in := range answers {
			if err := questionOfTask(byID, in.QuestionID); err != nil {
				return err
			}
			err := subRepo.UpsertAnswer(ctx, &model.StudentTaskAnswer{
				SubmissionID:      sub.ID,
				QuestionID:        in.QuestionID,
				SelectedOptionIDs: in.SelectedOptionIDs,
				AnswerText:        in.AnswerText,
			})
			if err != nil {
				return err
			}
		}

		saved, err := subRepo.ListAnswers(ctx, sub.ID)
		if err != nil {
			return err
		}
		existing := make(map[uint]model.StudentTaskAnswer, len(saved))
		for _, a := range saved {
			existing[a.QuestionID] = a
		}

		grading.Snapshot(sub, hw, now)
		sub.Status = model.SubmissionSubmitted

		gq := make([]grading.Question, 0, len(questions))
		verdicts := make(map[uint]grading.Verdict, len(questions))
		for _, q := range questions {
			question := homeworkGradingQuestion(q)
			gq = append(gq, question)

			answer, ok := existing[q.ID]
			if !ok {
				// 未作答的题也落一条记录，开放题据此进入批改队列
				answer = model.StudentTaskAnswer{SubmissionID: sub.ID, QuestionID: q.ID}
			}
			v := grading.GradeAnswer(question, grading.Answer{
				SelectedOptionIDs: answer.SelectedOptionIDs,
				Text:              answer.AnswerText,
			})
			verdicts[q.ID] = v
			if v.Graded {
				score, correct := v.Score, v.Correct
				answer.Score = &score
				answer.IsCorrect = &correct
				answer.GradedBy = model.GradedByAuto
				answer.GradedAt = &now
				monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByAuto), outcomeLabel(correct)).Inc()
			} else {
				monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByAuto), "pending").Inc()
			}
			if err := subRepo.SaveAnswer(ctx, &answer); err != nil {
				return err
			}
		}

		sum := grading.Summarize(gq, verdicts)
		sub.MaxScore = sum.Max
		if grading.AfterSubmit(sum) == model.SubmissionGraded {
			grading.Finalize(sub, sum, now)
		} else {
			sub.Status = model.SubmissionNeedsReview
		}
		return subRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("作业任务已提交",
		zap.Uint("submissionID", sub.ID),
		zap.Uint("studentID", sub.StudentID),
		zap.String("status", string(sub.Status)),
		zap.Bool("late", sub.IsLate))

	if sub.Status == model.SubmissionNeedsReview && hw.AIGradingEnabled && s.Grader != nil {
		if _, err := s.aiGrade(ctx, sub.ID); err != nil {
			logger.Log.Warn("AI 批改失败，等待老师批改", zap.Uint("submissionID", sub.ID), zap.Error(err))
		}
	}
	return s.notifyGraded(ctx, sub.ID)
}

// resolve 所有作答都有分数后结算最终成绩，迟交系数只应用一次
func (s *SubmissionService) resolve(ctx context.Context, tx *gorm.DB, sub *model.StudentTaskSubmission) error {
	questions, err := s.HomeworkRepo.WithTx(tx).ListQuestions(ctx, sub.TaskID)
	if err != nil {
		return err
	}
	answers, err := s.SubmissionRepo.WithTx(tx).ListAnswers(ctx, sub.ID)
	if err != nil {
		return err
	}
	verdicts := make(map[uint]grading.Verdict, len(answers))
	for _, a := range answers {
		if a.Score == nil {
			verdicts[a.QuestionID] = grading.Verdict{}
			continue
		}
		verdicts[a.QuestionID] = grading.Verdict{Graded: true, Score: *a.Score, Correct: a.IsCorrect != nil && *a.IsCorrect}
	}
	gq := make([]grading.Question, 0, len(questions))
	for _, q := range questions {
		gq = append(gq, homeworkGradingQuestion(q))
	}
	if grading.Finalize(sub, grading.Summarize(gq, verdicts), s.now()) {
		return s.SubmissionRepo.WithTx(tx).Update(ctx, sub)
	}
	return nil
}

// reviewableSubmission 老师必须任教该班级
func (s *SubmissionService) reviewableSubmission(ctx context.Context, actor Actor, sub *model.StudentTaskSubmission) error {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return err
	}
	hw, err := s.HomeworkRepo.FindByID(ctx, sub.HomeworkID)
	if err != nil {
		return err
	}
	class, err := s.SchoolRepo.FindClass(ctx, hw.ClassID)
	if err != nil {
		return err
	}
	return s.Access.ManageClass(ctx, actor, class)
}

// ReviewAnswer 老师给待批改的作答打分
func (s *SubmissionService) ReviewAnswer(ctx context.Context, actor Actor, answerID uint, in ReviewInput) (*SubmissionDetail, error) {
	answer, err := s.SubmissionRepo.FindAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	sub, err := s.SubmissionRepo.FindByID(ctx, answer.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := s.reviewableSubmission(ctx, actor, sub); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subRepo := s.SubmissionRepo.WithTx(tx)
		sub, err = subRepo.FindForUpdate(ctx, sub.ID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubmissionNeedsReview {
			return util.NewStateTransitionError("submission", string(sub.Status), "reviewed")
		}
		answer, err = subRepo.FindAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if answer.Graded() {
			return util.NewStateTransitionError("answer", "graded", "reviewed")
		}
		q, err := s.HomeworkRepo.WithTx(tx).FindQuestion(ctx, answer.QuestionID)
		if err != nil {
			return err
		}
		if in.Score < 0 || in.Score > q.Points {
			return util.NewValidationError("score", "must be between 0 and %.2f", q.Points)
		}

		now := s.now()
		score, correct := in.Score, in.Score >= q.Points
		answer.Score = &score
		answer.IsCorrect = &correct
		answer.GradedBy = model.GradedByTeacher
		answer.TeacherFeedback = in.Feedback
		answer.GradedAt = &now
		if err := subRepo.SaveAnswer(ctx, answer); err != nil {
			return err
		}
		monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByTeacher), "graded").Inc()
		return s.resolve(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("老师批改作答", zap.Uint("answerID", answerID), zap.Uint("teacherID", actor.UserID))
	return s.notifyGraded(ctx, sub.ID)
}

// AIGradeSubmission 老师手动触发 AI 批改
func (s *SubmissionService) AIGradeSubmission(ctx context.Context, actor Actor, submissionID uint) (*SubmissionDetail, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.reviewableSubmission(ctx, actor, sub); err != nil {
		return nil, err
	}
	if s.Grader == nil {
		return nil, util.NewValidationError("ai", "AI grading is not configured")
	}
	if sub.Status != model.SubmissionNeedsReview {
		return nil, util.NewStateTransitionError("submission", string(sub.Status), "ai_graded")
	}
	if _, err := s.aiGrade(ctx, sub.ID); err != nil {
		return nil, err
	}
	return s.notifyGraded(ctx, sub.ID)
}

type aiResult struct {
	answerID uint
	grade    *AIGrade
}

// aiGrade 模型调用在事务外进行；低于置信度阈值的建议只记录，不计分
func (s *SubmissionService) aiGrade(ctx context.Context, submissionID uint) (int, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return 0, err
	}
	answers, err := s.SubmissionRepo.ListAnswers(ctx, sub.ID)
	if err != nil {
		return 0, err
	}

	var results []aiResult
	for _, a := range answers {
		if a.Graded() {
			continue
		}
		q, err := s.HomeworkRepo.FindQuestion(ctx, a.QuestionID)
		if err != nil {
			return 0, err
		}
		grade, err := s.Grader.Grade(ctx, q, a.AnswerText)
		if err != nil {
			monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByAI), "error").Inc()
			logger.Log.Warn("AI 批改单题失败", zap.Uint("answerID", a.ID), zap.Error(err))
			continue
		}
		results = append(results, aiResult{answerID: a.ID, grade: grade})
	}
	if len(results) == 0 {
		return 0, nil
	}

	accepted := 0
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subRepo := s.SubmissionRepo.WithTx(tx)
		sub, err = subRepo.FindForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubmissionNeedsReview {
			return nil
		}
		now := s.now()
		for _, r := range results {
			answer, err := subRepo.FindAnswer(ctx, r.answerID)
			if err != nil {
				return err
			}
			// 期间老师已批改
			if answer.Graded() {
				continue
			}
			suggested, confidence := r.grade.Score, r.grade.Confidence
			answer.AIFeedback = r.grade.Feedback
			answer.AISuggestedScore = &suggested
			answer.AIConfidence = &confidence
			if s.Grader.Accepts(r.grade) {
				q, err := s.HomeworkRepo.WithTx(tx).FindQuestion(ctx, answer.QuestionID)
				if err != nil {
					return err
				}
				correct := suggested >= q.Points
				answer.Score = &suggested
				answer.IsCorrect = &correct
				answer.GradedBy = model.GradedByAI
				answer.GradedAt = &now
				accepted++
				monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByAI), "accepted").Inc()
			} else {
				monitoring.GradingOutcomes.WithLabelValues(string(model.GradedByAI), "low_confidence").Inc()
			}
			if err := subRepo.SaveAnswer(ctx, answer); err != nil {
				return err
			}
		}
		return s.resolve(ctx, tx, sub)
	})
	if err != nil {
		return 0, err
	}
	logger.Log.Info("AI 批改完成", zap.Uint("submissionID", submissionID), zap.Int("accepted", accepted), zap.Int("suggested", len(results)))
	return accepted, nil
}

// notifyGraded 返回最新详情；已出成绩时通知学生
func (s *SubmissionService) notifyGraded(ctx context.Context, submissionID uint) (*SubmissionDetail, error) {
	d, err := s.detail(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	sub := d.Submission
	if sub.Status == model.SubmissionGraded {
		s.Notifier.Notify([]uint{sub.StudentID}, Event{
			Type: EventSubmissionGraded,
			Data: map[string]interface{}{
				"submissionId": sub.ID,
				"homeworkId":   sub.HomeworkID,
				"taskId":       sub.TaskID,
				"finalScore":   sub.FinalScore,
				"maxScore":     sub.MaxScore,
				"isLate":       sub.IsLate,
			},
		})
	}
	return d, nil
}

func (s *SubmissionService) detail(ctx context.Context, submissionID uint) (*SubmissionDetail, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.SubmissionRepo.ListAnswers(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &SubmissionDetail{Submission: sub, Answers: answers}, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, actor Actor, id uint) (*SubmissionDetail, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStudent() {
		if err := ownSubmission(actor, sub); err != nil {
			return nil, err
		}
	} else {
		student, err := s.UserRepo.FindByID(ctx, sub.StudentID)
		if err != nil {
			return nil, err
		}
		if err := s.Access.ViewStudent(ctx, actor, student); err != nil {
			return nil, err
		}
	}
	return s.detail(ctx, id)
}

// ListMySubmissions 学生在某作业下的全部提交
func (s *SubmissionService) ListMySubmissions(ctx context.Context, actor Actor, homeworkID uint) ([]model.StudentTaskSubmission, error) {
	if err := actor.Require(model.Student); err != nil {
		return nil, err
	}
	return s.SubmissionRepo.ListByStudentHomework(ctx, actor.UserID, homeworkID)
}

// ListReviewQueue 教师看本人班级，管理员看本校
func (s *SubmissionService) ListReviewQueue(ctx context.Context, actor Actor, homeworkID uint, page, limit int) ([]repository.ReviewItem, int64, error) {
	var classes []model.SchoolClass
	var err error
	switch actor.Role {
	case model.Teacher:
		classes, err = s.SchoolRepo.ListClassesOfTeacher(ctx, actor.UserID)
	case model.Admin:
		classes, err = s.SchoolRepo.ListClasses(ctx, *actor.SchoolID)
	case model.SuperAdmin:
		classes, err = s.SchoolRepo.ListClasses(ctx, 0)
	default:
		err = util.ErrForbidden
	}
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return s.SubmissionRepo.ListReviewQueue(ctx, ids, homeworkID, page, limit)
}
