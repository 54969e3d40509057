package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai_mentor_backend/internal/grading"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// swagger:model TestQuestionInput
type TestQuestionInput struct {
	QuestionType     model.QuestionType `json:"questionType" binding:"required,question_type"`
	Text             string             `json:"text" binding:"required,notblank"`
	Options          []model.Option     `json:"options"`
	CorrectOptionIDs []string           `json:"correctOptionIds"`
	AcceptedAnswers  []string           `json:"acceptedAnswers"`
	Points           float64            `json:"points" binding:"gte=0"`
}

// swagger:model CreateTestInput
type CreateTestInput struct {
	ChapterID   uint                `json:"chapterId" binding:"required"`
	ParagraphID *uint               `json:"paragraphId"`
	Title       string              `json:"title" binding:"required,notblank"`
	Purpose     model.TestPurpose   `json:"purpose" binding:"required,test_purpose"`
	Questions   []TestQuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// swagger:model AnswerInput
type AnswerInput struct {
	QuestionID        uint     `json:"questionId" binding:"required"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	AnswerText        string   `json:"answerText"`
}

// swagger:model CorrectAttemptInput
type CorrectAttemptInput struct {
	Score  float64 `json:"score" binding:"gte=0,lte=100"`
	Reason string  `json:"reason" binding:"required,notblank"`
}

// TestDetail 试卷及题目，学生视角不含答案
type TestDetail struct {
	model.Test
	Questions []model.TestQuestion `json:"questions"`
}

// AttemptResult 提交结果
type AttemptResult struct {
	Attempt     *model.TestAttempt        `json:"attempt"`
	Answers     []model.TestAttemptAnswer `json:"answers"`
	Transitions []Transition              `json:"transitions"`
}

type TestService struct {
	DB          *gorm.DB
	TestRepo    *repository.TestRepository
	ContentRepo *repository.ContentRepository
	Mastery     *MasteryService

	now func() time.Time
}

func NewTestService(db *gorm.DB, testRepo *repository.TestRepository, contentRepo *repository.ContentRepository, mastery *MasteryService) *TestService {
	return &TestService{DB: db, TestRepo: testRepo, ContentRepo: contentRepo, Mastery: mastery, now: time.Now}
}

func validateTestQuestion(i int, q TestQuestionInput) error {
	field := func(name string) string { return "questions[" + itoa(i) + "]." + name }
	if !q.QuestionType.AutoGradable() {
		return util.NewValidationError(field("questionType"), "tests only accept auto-gradable questions")
	}
	if q.QuestionType.IsChoice() {
		if len(q.Options) < 2 {
			return util.NewValidationError(field("options"), "at least two options required")
		}
		if err := checkCorrectOptions(q.QuestionType, q.Options, q.CorrectOptionIDs); err != nil {
			return util.NewValidationError(field("correctOptionIds"), "%v", err)
		}
	}
	if q.QuestionType == model.ShortAnswer && len(nonBlank(q.AcceptedAnswers)) == 0 {
		return util.NewValidationError(field("acceptedAnswers"), "at least one accepted answer required")
	}
	return nil
}

func (s *TestService) CreateTest(ctx context.Context, actor Actor, in CreateTestInput) (*TestDetail, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return nil, err
	}
	chapter, err := s.ContentRepo.FindChapter(ctx, in.ChapterID)
	if err != nil {
		return nil, err
	}
	tb, err := s.ContentRepo.FindTextbook(ctx, chapter.TextbookID)
	if err != nil {
		return nil, err
	}
	if err := actor.ViewContent(tb); err != nil {
		return nil, err
	}
	if in.ParagraphID != nil {
		p, err := s.ContentRepo.FindParagraph(ctx, *in.ParagraphID)
		if err != nil {
			return nil, err
		}
		if p.ChapterID != chapter.ID {
			return nil, util.NewValidationError("paragraphId", "paragraph does not belong to chapter %d", chapter.ID)
		}
	}
	if !in.Purpose.Valid() {
		return nil, util.NewValidationError("purpose", "unknown purpose %q", in.Purpose)
	}

	questions := make([]model.TestQuestion, 0, len(in.Questions))
	for i, q := range in.Questions {
		if err := validateTestQuestion(i, q); err != nil {
			return nil, err
		}
		points := q.Points
		if points <= 0 {
			points = 1
		}
		questions = append(questions, model.TestQuestion{
			QuestionType:     q.QuestionType,
			Text:             strings.TrimSpace(q.Text),
			Options:          q.Options,
			CorrectOptionIDs: q.CorrectOptionIDs,
			AcceptedAnswers:  nonBlank(q.AcceptedAnswers),
			Points:           points,
		})
	}

	test := &model.Test{
		SchoolID:    actor.SchoolID,
		ChapterID:   chapter.ID,
		ParagraphID: in.ParagraphID,
		Title:       strings.TrimSpace(in.Title),
		Purpose:     in.Purpose,
		IsActive:    true,
		CreatorID:   actor.UserID,
	}
	if err := s.TestRepo.CreateWithQuestions(ctx, test, questions); err != nil {
		return nil, err
	}
	return &TestDetail{Test: *test, Questions: questions}, nil
}

// visibleTest 学生只能看到本校或全局的启用试卷
func (s *TestService) visibleTest(ctx context.Context, actor Actor, id uint) (*model.Test, error) {
	test, err := s.TestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if test.SchoolID != nil && !actor.InSchool(*test.SchoolID) {
		return nil, util.ErrForbidden
	}
	if actor.IsStudent() && !test.IsActive {
		return nil, util.NewNotFoundError("test", id)
	}
	return test, nil
}

func (s *TestService) ListTests(ctx context.Context, actor Actor, chapterID, paragraphID uint) ([]model.Test, error) {
	return s.TestRepo.List(ctx, repository.TestFilter{
		SchoolID:    actor.SchoolScope(),
		ChapterID:   chapterID,
		ParagraphID: paragraphID,
		ActiveOnly:  actor.IsStudent(),
	})
}

func (s *TestService) GetTest(ctx context.Context, actor Actor, id uint) (*TestDetail, error) {
	test, err := s.visibleTest(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.TestRepo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TestDetail{Test: *test, Questions: questions}, nil
}

// SetActive 停用后学生不可再作答
func (s *TestService) SetActive(ctx context.Context, actor Actor, id uint, active bool) error {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return err
	}
	test, err := s.visibleTest(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.IsTeacher() && test.CreatorID != actor.UserID {
		return util.ErrForbidden
	}
	test.IsActive = active
	return s.TestRepo.Update(ctx, test)
}

// StartAttempt 已有进行中的作答时直接返回
func (s *TestService) StartAttempt(ctx context.Context, actor Actor, testID uint) (*model.TestAttempt, error) {
	if err := actor.Require(model.Student); err != nil {
		return nil, err
	}
	test, err := s.visibleTest(ctx, actor, testID)
	if err != nil {
		return nil, err
	}
	if !test.IsActive {
		return nil, util.NewStateTransitionError("test", "inactive", string(model.AttemptInProgress))
	}

	var attempt *model.TestAttempt
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TestRepo.WithTx(tx)
		open, err := repo.FindOpenAttempt(ctx, actor.UserID, testID)
		if err == nil {
			attempt = open
			return nil
		}
		var nf *util.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		n, err := repo.NextAttemptNumber(ctx, actor.UserID, testID)
		if err != nil {
			return err
		}
		attempt = &model.TestAttempt{
			StudentID:     actor.UserID,
			TestID:        testID,
			SchoolID:      actor.SchoolID,
			AttemptNumber: n,
			Status:        model.AttemptInProgress,
			StartedAt:     s.now(),
		}
		return repo.CreateAttempt(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func toGradingQuestion(q model.TestQuestion) grading.Question {
	return grading.Question{
		ID:               q.ID,
		Type:             q.QuestionType,
		Points:           q.Points,
		CorrectOptionIDs: q.CorrectOptionIDs,
		AcceptedAnswers:  q.AcceptedAnswers,
	}
}

// SubmitAttempt 自动评分，成绩写入后在同一事务内重算掌握度
func (s *TestService) SubmitAttempt(ctx context.Context, actor Actor, attemptID uint, answers []AnswerInput) (*AttemptResult, error) {
	if err := actor.Require(model.Student); err != nil {
		return nil, err
	}

	result := &AttemptResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TestRepo.WithTx(tx)
		attempt, err := repo.FindAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != actor.UserID {
			return util.ErrForbidden
		}
		if attempt.Status != model.AttemptInProgress {
			return util.NewStateTransitionError("attempt", string(attempt.Status), string(model.AttemptSubmitted))
		}
		test, err := repo.FindByID(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		questions, err := repo.ListQuestions(ctx, test.ID)
		if err != nil {
			return err
		}

		byID := make(map[uint]AnswerInput, len(answers))
		for _, a := range answers {
			byID[a.QuestionID] = a
		}
		gqs := make([]grading.Question, 0, len(questions))
		verdicts := make(map[uint]grading.Verdict, len(questions))
		rows := make([]model.TestAttemptAnswer, 0, len(questions))
		for _, q := range questions {
			gq := toGradingQuestion(q)
			gqs = append(gqs, gq)
			in := byID[q.ID]
			v := grading.GradeAnswer(gq, grading.Answer{SelectedOptionIDs: in.SelectedOptionIDs, Text: in.AnswerText})
			verdicts[q.ID] = v
			rows = append(rows, model.TestAttemptAnswer{
				AttemptID:         attempt.ID,
				QuestionID:        q.ID,
				SelectedOptionIDs: in.SelectedOptionIDs,
				AnswerText:        in.AnswerText,
				IsCorrect:         util.BoolPtr(v.Correct),
				Score:             util.Float64Ptr(v.Score),
			})
		}
		if err := repo.SaveAnswers(ctx, rows); err != nil {
			return err
		}

		sum := grading.Summarize(gqs, verdicts)
		now := s.now()
		score := util.Round2(sum.Percent())
		attempt.Score = &score
		attempt.SubmittedAt = &now
		attempt.GradedAt = &now
		attempt.Status = model.AttemptGraded
		if err := repo.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}

		transitions, err := s.Mastery.RecomputeForAttempt(ctx, tx, attempt.StudentID, test, attempt.ID)
		if err != nil {
			return err
		}
		result.Attempt = attempt
		result.Answers = rows
		result.Transitions = transitions
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("测试已评分",
		zap.Uint("attemptID", attemptID),
		zap.Uint("studentID", actor.UserID),
		zap.Float64("score", *result.Attempt.Score),
		zap.Int("transitions", len(result.Transitions)))
	return result, nil
}

// CorrectAttempt 教师更正成绩并重算掌握度
func (s *TestService) CorrectAttempt(ctx context.Context, actor Actor, attemptID uint, in CorrectAttemptInput) (*AttemptResult, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return nil, err
	}

	result := &AttemptResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TestRepo.WithTx(tx)
		attempt, err := repo.FindAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if err := s.canCorrect(ctx, tx, actor, attempt); err != nil {
			return err
		}
		if attempt.Status != model.AttemptGraded {
			return util.NewStateTransitionError("attempt", string(attempt.Status), "corrected")
		}
		test, err := repo.FindByID(ctx, attempt.TestID)
		if err != nil {
			return err
		}

		now := s.now()
		score := util.Round2(in.Score)
		attempt.Score = &score
		attempt.CorrectedAt = &now
		attempt.CorrectionReason = strings.TrimSpace(in.Reason)
		if err := repo.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}

		transitions, err := s.Mastery.RecomputeForAttempt(ctx, tx, attempt.StudentID, test, attempt.ID)
		if err != nil {
			return err
		}
		result.Attempt = attempt
		result.Transitions = transitions
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("测试成绩已更正", zap.Uint("attemptID", attemptID), zap.Uint("by", actor.UserID))
	return result, nil
}

func (s *TestService) canCorrect(ctx context.Context, tx *gorm.DB, actor Actor, attempt *model.TestAttempt) error {
	student, err := s.Mastery.UserRepo.WithTx(tx).FindByID(ctx, attempt.StudentID)
	if err != nil {
		return err
	}
	access := &Access{Schools: s.Mastery.Access.Schools.WithTx(tx)}
	return access.ViewStudent(ctx, actor, student)
}

func (s *TestService) GetAttempt(ctx context.Context, actor Actor, attemptID uint) (*AttemptResult, error) {
	attempt, err := s.TestRepo.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != actor.UserID {
		if err := s.canCorrect(ctx, s.DB, actor, attempt); err != nil {
			return nil, err
		}
	}
	answers, err := s.TestRepo.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &AttemptResult{Attempt: attempt, Answers: answers}, nil
}

func (s *TestService) ListMyAttempts(ctx context.Context, actor Actor, testID uint) ([]model.TestAttempt, error) {
	return s.TestRepo.ListAttemptsOfStudent(ctx, actor.UserID, testID)
}
