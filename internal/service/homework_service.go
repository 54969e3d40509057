package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/grading"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// swagger:model HomeworkInput
type HomeworkInput struct {
	ClassID           uint       `json:"classId" binding:"required"`
	Title             string     `json:"title" binding:"required,notblank"`
	Description       string     `json:"description"`
	DueDate           time.Time  `json:"dueDate" binding:"required"`
	CloseAt           *time.Time `json:"closeAt"`
	LatePenaltyFactor *float64   `json:"latePenaltyFactor" binding:"omitempty,gt=0,lte=1"`
	AllowLate         *bool      `json:"allowLate"`
	AIGradingEnabled  bool       `json:"aiGradingEnabled"`
}

// swagger:model TaskInput
type TaskInput struct {
	ParagraphID  *uint  `json:"paragraphId"`
	Title        string `json:"title" binding:"required,notblank"`
	Instructions string `json:"instructions"`
}

// swagger:model QuestionInput
type QuestionInput struct {
	QuestionType     model.QuestionType `json:"questionType" binding:"required,question_type"`
	Text             string             `json:"text" binding:"required,notblank"`
	Options          []model.Option     `json:"options"`
	CorrectOptionIDs []string           `json:"correctOptionIds"`
	AcceptedAnswers  []string           `json:"acceptedAnswers"`
	GradingRubric    string             `json:"gradingRubric"`
	Explanation      string             `json:"explanation"`
	Points           float64            `json:"points" binding:"gte=0"`
	Difficulty       model.Difficulty   `json:"difficulty" binding:"omitempty,difficulty"`
	BloomLevel       model.BloomLevel   `json:"bloomLevel" binding:"omitempty,bloom"`
}

// TaskDetail 任务及题目
type TaskDetail struct {
	model.HomeworkTask
	Questions []model.HomeworkTaskQuestion `json:"questions"`
}

// HomeworkDetail 作业详情
type HomeworkDetail struct {
	model.Homework
	Tasks []TaskDetail `json:"tasks"`
}

type HomeworkService struct {
	DB           *gorm.DB
	HomeworkRepo *repository.HomeworkRepository
	SchoolRepo   *repository.SchoolRepository
	ContentRepo  *repository.ContentRepository
	Access       *Access
	Notifier     Notifier

	mu  sync.RWMutex
	cfg config.GradingConfig
	now func() time.Time
}

// ApplyConfig 热更新默认迟交系数，只影响之后创建的作业
func (s *HomeworkService) ApplyConfig(cfg config.GradingConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func NewHomeworkService(db *gorm.DB, access *Access, cfg config.GradingConfig) *HomeworkService {
	return &HomeworkService{
		DB:           db,
		HomeworkRepo: repository.NewHomeworkRepository(db),
		SchoolRepo:   repository.NewSchoolRepository(db),
		ContentRepo:  repository.NewContentRepository(db),
		Access:       access,
		Notifier:     noopNotifier{},
		cfg:          cfg,
		now:          time.Now,
	}
}

// questionFromInput 校验题目内容；requireRubric 用于 AI 生成的开放题
func questionFromInput(field string, in QuestionInput, requireRubric bool) (*model.HomeworkTaskQuestion, error) {
	if !in.QuestionType.Valid() {
		return nil, util.NewValidationError(field+".questionType", "unknown question type %q", in.QuestionType)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, util.NewValidationError(field+".text", "required")
	}
	q := &model.HomeworkTaskQuestion{
		QuestionType:  in.QuestionType,
		Text:          strings.TrimSpace(in.Text),
		GradingRubric: strings.TrimSpace(in.GradingRubric),
		Explanation:   strings.TrimSpace(in.Explanation),
		Points:        in.Points,
		Difficulty:    in.Difficulty,
		BloomLevel:    in.BloomLevel,
	}
	if q.Points <= 0 {
		q.Points = 1
	}

	switch {
	case in.QuestionType.IsChoice():
		if len(in.Options) < 2 {
			return nil, util.NewValidationError(field+".options", "at least two options required")
		}
		if err := checkCorrectOptions(in.QuestionType, in.Options, in.CorrectOptionIDs); err != nil {
			return nil, util.NewValidationError(field+".correctOptionIds", "%v", err)
		}
		q.Options = in.Options
		q.CorrectOptionIDs = in.CorrectOptionIDs
	case in.QuestionType == model.ShortAnswer:
		accepted := nonBlank(in.AcceptedAnswers)
		if len(accepted) == 0 {
			return nil, util.NewValidationError(field+".acceptedAnswers", "correct answer set is empty")
		}
		q.AcceptedAnswers = accepted
	case in.QuestionType == model.OpenEnded:
		if requireRubric && q.GradingRubric == "" {
			return nil, util.NewValidationError(field+".gradingRubric", "required for open-ended questions")
		}
	}
	return q, nil
}

// classForTeaching 教师必须任教该班级
func (s *HomeworkService) classForTeaching(ctx context.Context, actor Actor, classID uint) (*model.SchoolClass, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return nil, err
	}
	class, err := s.SchoolRepo.FindClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.Access.ManageClass(ctx, actor, class); err != nil {
		return nil, err
	}
	return class, nil
}

// managedHomework 读取作业并校验管理权限
func (s *HomeworkService) managedHomework(ctx context.Context, actor Actor, id uint) (*model.Homework, error) {
	hw, err := s.HomeworkRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.classForTeaching(ctx, actor, hw.ClassID); err != nil {
		return nil, err
	}
	return hw, nil
}

func requireDraft(hw *model.Homework) error {
	if hw.Status != model.HomeworkDraft {
		return util.NewStateTransitionError("homework", string(hw.Status), "edited")
	}
	return nil
}

func (s *HomeworkService) CreateHomework(ctx context.Context, actor Actor, in HomeworkInput) (*model.Homework, error) {
	class, err := s.classForTeaching(ctx, actor, in.ClassID)
	if err != nil {
		return nil, err
	}
	if in.CloseAt != nil && in.CloseAt.Before(in.DueDate) {
		return nil, util.NewValidationError("closeAt", "must not be before the due date")
	}

	s.mu.RLock()
	penalty := s.cfg.DefaultLatePenalty
	s.mu.RUnlock()
	if in.LatePenaltyFactor != nil {
		penalty = *in.LatePenaltyFactor
	}
	if penalty <= 0 || penalty > 1 {
		return nil, util.NewValidationError("latePenaltyFactor", "must be in (0, 1]")
	}

	hw := &model.Homework{
		SchoolID:          class.SchoolID,
		ClassID:           class.ID,
		TeacherID:         actor.UserID,
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		Status:            model.HomeworkDraft,
		DueDate:           in.DueDate,
		CloseAt:           in.CloseAt,
		LatePenaltyFactor: penalty,
		AllowLate:         true,
		AIGradingEnabled:  in.AIGradingEnabled,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.HomeworkRepo.WithTx(tx)
		if err := repo.Create(ctx, hw); err != nil {
			return err
		}
		// gorm 对 default:true 的字段在零值时会写入默认值，需要单独更新
		if in.AllowLate != nil && !*in.AllowLate {
			hw.AllowLate = false
			return repo.Update(ctx, hw.ID, map[string]interface{}{"allow_late": false})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("创建作业", zap.Uint("homeworkID", hw.ID), zap.Uint("classID", hw.ClassID), zap.Uint("teacherID", actor.UserID))
	return hw, nil
}

// UpdateHomework 已关闭的作业不可修改；已提交的成绩使用提交时的快照
func (s *HomeworkService) UpdateHomework(ctx context.Context, actor Actor, id uint, in HomeworkInput) (*model.Homework, error) {
	hw, err := s.managedHomework(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if hw.Status == model.HomeworkClosed {
		return nil, util.NewStateTransitionError("homework", string(hw.Status), "edited")
	}
	if in.CloseAt != nil && in.CloseAt.Before(in.DueDate) {
		return nil, util.NewValidationError("closeAt", "must not be before the due date")
	}

	updates := map[string]interface{}{
		"title":              strings.TrimSpace(in.Title),
		"description":        in.Description,
		"due_date":           in.DueDate,
		"close_at":           in.CloseAt,
		"ai_grading_enabled": in.AIGradingEnabled,
	}
	if in.LatePenaltyFactor != nil {
		if *in.LatePenaltyFactor <= 0 || *in.LatePenaltyFactor > 1 {
			return nil, util.NewValidationError("latePenaltyFactor", "must be in (0, 1]")
		}
		updates["late_penalty_factor"] = *in.LatePenaltyFactor
	}
	if in.AllowLate != nil {
		updates["allow_late"] = *in.AllowLate
	}
	if err := s.HomeworkRepo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.HomeworkRepo.FindByID(ctx, id)
}

func (s *HomeworkService) AddTask(ctx context.Context, actor Actor, homeworkID uint, in TaskInput) (*model.HomeworkTask, error) {
	hw, err := s.managedHomework(ctx, actor, homeworkID)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(hw); err != nil {
		return nil, err
	}
	if in.ParagraphID != nil {
		if _, err := s.ContentRepo.FindParagraph(ctx, *in.ParagraphID); err != nil {
			return nil, err
		}
	}
	task := &model.HomeworkTask{
		HomeworkID:   hw.ID,
		ParagraphID:  in.ParagraphID,
		Title:        strings.TrimSpace(in.Title),
		Instructions: in.Instructions,
	}
	if err := s.HomeworkRepo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// draftTask 返回任务及其草稿状态的作业
func (s *HomeworkService) draftTask(ctx context.Context, actor Actor, taskID uint) (*model.HomeworkTask, *model.Homework, error) {
	task, err := s.HomeworkRepo.FindTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	hw, err := s.managedHomework(ctx, actor, task.HomeworkID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireDraft(hw); err != nil {
		return nil, nil, err
	}
	return task, hw, nil
}

// AddQuestions 手工出题，全部校验通过才写入
func (s *HomeworkService) AddQuestions(ctx context.Context, actor Actor, taskID uint, inputs []QuestionInput) ([]model.HomeworkTaskQuestion, error) {
	task, _, err := s.draftTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, util.NewValidationError("questions", "at least one question required")
	}
	questions := make([]model.HomeworkTaskQuestion, 0, len(inputs))
	for i, in := range inputs {
		q, err := questionFromInput("questions["+itoa(i)+"]", in, false)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.HomeworkRepo.WithTx(tx).CreateQuestions(ctx, task.ID, questions)
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *HomeworkService) DeleteQuestion(ctx context.Context, actor Actor, questionID uint) error {
	q, err := s.HomeworkRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if _, _, err := s.draftTask(ctx, actor, q.TaskID); err != nil {
		return err
	}
	return s.HomeworkRepo.DeleteQuestion(ctx, questionID)
}

// transition DRAFT -> PUBLISHED -> CLOSED，条件更新防止并发重复流转
func (s *HomeworkService) transition(ctx context.Context, tx *gorm.DB, hw *model.Homework, to model.HomeworkStatus) error {
	if !grading.CanTransitionHomework(hw.Status, to) {
		return util.NewStateTransitionError("homework", string(hw.Status), string(to))
	}
	now := s.now()
	n, err := s.HomeworkRepo.WithTx(tx).TransitionStatus(ctx, hw.ID, hw.Status, to, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return util.NewConflictError("homework", "status changed concurrently")
	}
	hw.Status = to
	switch to {
	case model.HomeworkPublished:
		hw.PublishedAt = &now
	case model.HomeworkClosed:
		hw.ClosedAt = &now
	}
	return nil
}

// Publish 每个任务至少一道题
func (s *HomeworkService) Publish(ctx context.Context, actor Actor, id uint) (*model.Homework, error) {
	hw, err := s.managedHomework(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.HomeworkRepo.WithTx(tx)
		tasks, err := repo.ListTasks(ctx, hw.ID)
		if err != nil {
			return err
		}
		if hw.Status == model.HomeworkDraft {
			if len(tasks) == 0 {
				return util.NewValidationError("tasks", "homework has no tasks")
			}
			for _, t := range tasks {
				n, err := repo.CountQuestions(ctx, t.ID)
				if err != nil {
					return err
				}
				if n == 0 {
					return util.NewValidationError("tasks", "task %q has no questions", t.Title)
				}
			}
		}
		return s.transition(ctx, tx, hw, model.HomeworkPublished)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("作业已发布", zap.Uint("homeworkID", hw.ID))
	s.notifyClass(ctx, hw, EventHomeworkPublished)
	return hw, nil
}

func (s *HomeworkService) Close(ctx context.Context, actor Actor, id uint) (*model.Homework, error) {
	hw, err := s.managedHomework(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(ctx, tx, hw, model.HomeworkClosed)
	})
	if err != nil {
		return nil, err
	}
	s.notifyClass(ctx, hw, EventHomeworkClosed)
	return hw, nil
}

// AutoClose 关闭所有已过关闭时间的已发布作业，由定时任务调用
func (s *HomeworkService) AutoClose(ctx context.Context) (int, error) {
	due, err := s.HomeworkRepo.ListDueForClose(ctx, s.now())
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range due {
		hw := &due[i]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.transition(ctx, tx, hw, model.HomeworkClosed)
		})
		if err != nil {
			logger.Log.Warn("自动关闭作业失败", zap.Uint("homeworkID", hw.ID), zap.Error(err))
			continue
		}
		s.notifyClass(ctx, hw, EventHomeworkClosed)
		closed++
	}
	if closed > 0 {
		logger.Log.Info("自动关闭作业", zap.Int("count", closed))
	}
	return closed, nil
}

// notifyClass 查询失败只记日志，不影响状态变更
func (s *HomeworkService) notifyClass(ctx context.Context, hw *model.Homework, eventType string) {
	ids, err := s.SchoolRepo.StudentIDsOfClass(ctx, hw.ClassID)
	if err != nil {
		logger.Log.Warn("查询班级学生失败，跳过通知", zap.Uint("classID", hw.ClassID), zap.Error(err))
		return
	}
	s.Notifier.Notify(ids, Event{
		Type: eventType,
		Data: map[string]interface{}{
			"homeworkId": hw.ID,
			"classId":    hw.ClassID,
			"title":      hw.Title,
			"status":     hw.Status,
			"dueDate":    hw.DueDate,
		},
	})
}

// visibleHomework 学生只能看到本班已发布或已关闭的作业
func (s *HomeworkService) visibleHomework(ctx context.Context, actor Actor, id uint) (*model.Homework, error) {
	hw, err := s.HomeworkRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStudent() {
		if _, err := s.classForTeaching(ctx, actor, hw.ClassID); err != nil {
			return nil, err
		}
		return hw, nil
	}
	ok, err := s.SchoolRepo.IsStudentInClass(ctx, actor.UserID, hw.ClassID)
	if err != nil {
		return nil, err
	}
	if !ok || hw.Status == model.HomeworkDraft {
		return nil, util.NewNotFoundError("homework", id)
	}
	return hw, nil
}

// hideAnswerKey 学生视角去掉答案和评分标准
func hideAnswerKey(qs []model.HomeworkTaskQuestion) {
	for i := range qs {
		qs[i].CorrectOptionIDs = nil
		qs[i].AcceptedAnswers = nil
		qs[i].GradingRubric = ""
		qs[i].Explanation = ""
	}
}

func (s *HomeworkService) GetHomework(ctx context.Context, actor Actor, id uint) (*HomeworkDetail, error) {
	hw, err := s.visibleHomework(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.HomeworkRepo.ListTasks(ctx, hw.ID)
	if err != nil {
		return nil, err
	}
	detail := &HomeworkDetail{Homework: *hw, Tasks: make([]TaskDetail, 0, len(tasks))}
	for _, t := range tasks {
		qs, err := s.HomeworkRepo.ListQuestions(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if actor.IsStudent() {
			hideAnswerKey(qs)
		}
		detail.Tasks = append(detail.Tasks, TaskDetail{HomeworkTask: t, Questions: qs})
	}
	return detail, nil
}

func (s *HomeworkService) ListHomework(ctx context.Context, actor Actor, status model.HomeworkStatus, page, limit int) ([]model.Homework, int64, error) {
	filter := repository.HomeworkFilter{Status: status}
	switch actor.Role {
	case model.Student:
		ids, err := s.SchoolRepo.ClassIDsOfStudent(ctx, actor.UserID)
		if err != nil {
			return nil, 0, err
		}
		filter.ClassIDs = ids
		filter.PublishedOnly = true
	case model.Teacher:
		classes, err := s.SchoolRepo.ListClassesOfTeacher(ctx, actor.UserID)
		if err != nil {
			return nil, 0, err
		}
		filter.ClassIDs = make([]uint, 0, len(classes))
		for _, c := range classes {
			filter.ClassIDs = append(filter.ClassIDs, c.ID)
		}
	case model.Admin:
		filter.SchoolID = *actor.SchoolID
	}
	return s.HomeworkRepo.List(ctx, filter, page, limit)
}
