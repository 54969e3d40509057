package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/mastery"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsService 教师看板的只读聚合，不修改任何业务数据
type AnalyticsService struct {
	AnalyticsRepo *repository.AnalyticsRepository
	SchoolRepo    *repository.SchoolRepository
	ContentRepo   *repository.ContentRepository
	HomeworkRepo  *repository.HomeworkRepository
	UserRepo      *repository.UserRepository
	Mastery       *MasteryService
	Access        *Access
	Storage       *StorageService
	// Redis 为 nil 时不缓存
	Redis *redis.Client

	mu  sync.RWMutex
	cfg config.AnalyticsConfig
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB, access *Access, masterySvc *MasteryService, storage *StorageService, rdb *redis.Client, cfg config.AnalyticsConfig) *AnalyticsService {
	s := &AnalyticsService{
		AnalyticsRepo: repository.NewAnalyticsRepository(db),
		SchoolRepo:    repository.NewSchoolRepository(db),
		ContentRepo:   repository.NewContentRepository(db),
		HomeworkRepo:  repository.NewHomeworkRepository(db),
		UserRepo:      repository.NewUserRepository(db),
		Mastery:       masterySvc,
		Access:        access,
		Storage:       storage,
		Redis:         rdb,
		now:           time.Now,
	}
	s.ApplyConfig(cfg)
	return s
}

func (s *AnalyticsService) ApplyConfig(cfg config.AnalyticsConfig) {
	if cfg.StrugglingThreshold <= 0 || cfg.StrugglingThreshold > 1 {
		cfg.StrugglingThreshold = 0.3
	}
	if cfg.TrendWindowDays <= 0 {
		cfg.TrendWindowDays = 30
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *AnalyticsService) config() config.AnalyticsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ---- cache ----

func (s *AnalyticsService) cached(ctx context.Context, key string, dst interface{}, load func() (interface{}, error)) error {
	ttl := s.config().CacheTTL
	if s.Redis != nil && ttl > 0 {
		raw, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(raw, dst) == nil {
			return nil
		}
		if err != nil && err != redis.Nil {
			logger.Log.Warn("读取分析缓存失败", zap.String("key", key), zap.Error(err))
		}
	}

	v, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.Redis != nil && ttl > 0 {
		if err := s.Redis.Set(ctx, key, raw, ttl).Err(); err != nil {
			logger.Log.Warn("写入分析缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return json.Unmarshal(raw, dst)
}

// ---- class scope ----

type classScope struct {
	Class      *model.SchoolClass
	StudentIDs []uint
}

func (s *AnalyticsService) classScope(ctx context.Context, actor Actor, classID uint) (*classScope, error) {
	if actor.IsStudent() {
		return nil, util.ErrForbidden
	}
	class, err := s.SchoolRepo.FindClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.Access.ManageClass(ctx, actor, class); err != nil {
		return nil, err
	}
	ids, err := s.SchoolRepo.StudentIDsOfClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return &classScope{Class: class, StudentIDs: ids}, nil
}

func (s *AnalyticsService) chapterTitles(ctx context.Context, ids []uint) (map[uint]model.Chapter, error) {
	chapters, err := s.ContentRepo.FindChaptersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]model.Chapter, len(chapters))
	for _, ch := range chapters {
		out[ch.ID] = ch
	}
	return out, nil
}

// ---- distribution ----

// ChapterDistribution 某章节各等级人数，Unassessed 为尚无掌握度记录的学生
type ChapterDistribution struct {
	ChapterID    uint   `json:"chapterId"`
	ChapterTitle string `json:"chapterTitle"`
	A            int64  `json:"a"`
	B            int64  `json:"b"`
	C            int64  `json:"c"`
	Unassessed   int64  `json:"unassessed"`
}

// swagger:model ClassDistribution
type ClassDistribution struct {
	ClassID    uint                  `json:"classId"`
	TextbookID uint                  `json:"textbookId,omitempty"`
	Students   int                   `json:"students"`
	Chapters   []ChapterDistribution `json:"chapters"`
}

func (s *AnalyticsService) distribution(ctx context.Context, scope *classScope, textbookID uint) (*ClassDistribution, error) {
	counts, err := s.AnalyticsRepo.ChapterTierCounts(ctx, scope.StudentIDs, textbookID)
	if err != nil {
		return nil, err
	}

	byChapter := map[uint]*ChapterDistribution{}
	var order []uint
	for _, c := range counts {
		d, ok := byChapter[c.ChapterID]
		if !ok {
			d = &ChapterDistribution{ChapterID: c.ChapterID}
			byChapter[c.ChapterID] = d
			order = append(order, c.ChapterID)
		}
		switch c.Tier {
		case model.TierA:
			d.A = c.Count
		case model.TierB:
			d.B = c.Count
		case model.TierC:
			d.C = c.Count
		}
	}

	// 指定教材时未被评估过的章节也要出现
	if textbookID > 0 {
		chapters, err := s.ContentRepo.ListChapters(ctx, textbookID)
		if err != nil {
			return nil, err
		}
		for _, ch := range chapters {
			if _, ok := byChapter[ch.ID]; !ok {
				byChapter[ch.ID] = &ChapterDistribution{ChapterID: ch.ID}
				order = append(order, ch.ID)
			}
		}
	}

	titles, err := s.chapterTitles(ctx, order)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := titles[order[i]], titles[order[j]]
		if a.TextbookID != b.TextbookID {
			return a.TextbookID < b.TextbookID
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return order[i] < order[j]
	})

	total := int64(len(scope.StudentIDs))
	out := &ClassDistribution{ClassID: scope.Class.ID, TextbookID: textbookID, Students: len(scope.StudentIDs), Chapters: make([]ChapterDistribution, 0, len(order))}
	for _, id := range order {
		d := byChapter[id]
		d.ChapterTitle = titles[id].Title
		d.Unassessed = total - d.A - d.B - d.C
		if d.Unassessed < 0 {
			d.Unassessed = 0
		}
		out.Chapters = append(out.Chapters, *d)
	}
	return out, nil
}

// ClassDistribution 班级各章节掌握度分布
func (s *AnalyticsService) ClassDistribution(ctx context.Context, actor Actor, classID, textbookID uint) (*ClassDistribution, error) {
	scope, err := s.classScope(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	var out ClassDistribution
	key := fmt.Sprintf("analytics:distribution:%d:%d", classID, textbookID)
	err = s.cached(ctx, key, &out, func() (interface{}, error) {
		return s.distribution(ctx, scope, textbookID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- struggling topics ----

// swagger:model StrugglingTopic
type StrugglingTopic struct {
	ChapterID    uint    `json:"chapterId"`
	ChapterTitle string  `json:"chapterTitle"`
	TierC        int64   `json:"tierC"`
	Students     int     `json:"students"`
	Share        float64 `json:"share"`
}

// StrugglingTopics 班级中 C 等级人数占比严格超过阈值的章节，按占比降序
func (s *AnalyticsService) StrugglingTopics(ctx context.Context, actor Actor, classID, textbookID uint) ([]StrugglingTopic, error) {
	scope, err := s.classScope(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	threshold := s.config().StrugglingThreshold

	out := []StrugglingTopic{}
	key := fmt.Sprintf("analytics:struggling:%d:%d:%g", classID, textbookID, threshold)
	err = s.cached(ctx, key, &out, func() (interface{}, error) {
		dist, err := s.distribution(ctx, scope, textbookID)
		if err != nil {
			return nil, err
		}
		return strugglingFrom(dist, threshold), nil
	})
	return out, err
}

func strugglingFrom(dist *ClassDistribution, threshold float64) []StrugglingTopic {
	topics := []StrugglingTopic{}
	if dist.Students == 0 {
		return topics
	}
	for _, ch := range dist.Chapters {
		share := float64(ch.C) / float64(dist.Students)
		if share > threshold {
			topics = append(topics, StrugglingTopic{
				ChapterID:    ch.ChapterID,
				ChapterTitle: ch.ChapterTitle,
				TierC:        ch.C,
				Students:     dist.Students,
				Share:        share,
			})
		}
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Share > topics[j].Share })
	return topics
}

// ---- trends ----

func tierRank(t model.MasteryTier) int {
	switch t {
	case model.TierA:
		return 3
	case model.TierB:
		return 2
	case model.TierC:
		return 1
	}
	return 0
}

// ChapterTrend 窗口期内某章节的等级变化
type ChapterTrend struct {
	ChapterID     uint   `json:"chapterId"`
	ChapterTitle  string `json:"chapterTitle"`
	Improved      int    `json:"improved"`
	Declined      int    `json:"declined"`
	FirstAssessed int    `json:"firstAssessed"`
	// Net 为窗口内每名学生首末等级差之和，A=3 B=2 C=1
	Net int `json:"net"`
}

// swagger:model ClassTrend
type ClassTrend struct {
	ClassID    uint           `json:"classId"`
	WindowDays int            `json:"windowDays"`
	Since      time.Time      `json:"since"`
	Improved   int            `json:"improved"`
	Declined   int            `json:"declined"`
	Chapters   []ChapterTrend `json:"chapters"`
}

type trendKey struct {
	student uint
	chapter uint
}

// computeTrend 以历史记录的 previous/new 等级计算变化；每名学生每章节的净变化取窗口首条 previous 与末条 new
func computeTrend(history []model.MasteryHistory) map[uint]*ChapterTrend {
	out := map[uint]*ChapterTrend{}
	first := map[trendKey]model.MasteryHistory{}
	last := map[trendKey]model.MasteryHistory{}

	for _, h := range history {
		ct, ok := out[h.UnitID]
		if !ok {
			ct = &ChapterTrend{ChapterID: h.UnitID}
			out[h.UnitID] = ct
		}
		switch {
		case h.PreviousTier == nil:
			ct.FirstAssessed++
		case tierRank(h.NewTier) > tierRank(*h.PreviousTier):
			ct.Improved++
		case tierRank(h.NewTier) < tierRank(*h.PreviousTier):
			ct.Declined++
		}

		k := trendKey{student: h.StudentID, chapter: h.UnitID}
		if _, ok := first[k]; !ok {
			first[k] = h
		}
		last[k] = h
	}

	for k, f := range first {
		if f.PreviousTier == nil {
			continue
		}
		out[k.chapter].Net += tierRank(last[k].NewTier) - tierRank(*f.PreviousTier)
	}
	return out
}

// ClassTrends 班级最近 days 天的章节等级变化，days<=0 时使用配置窗口
func (s *AnalyticsService) ClassTrends(ctx context.Context, actor Actor, classID uint, days int) (*ClassTrend, error) {
	scope, err := s.classScope(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = s.config().TrendWindowDays
	}
	since := s.now().AddDate(0, 0, -days)

	history, err := s.AnalyticsRepo.HistorySince(ctx, scope.StudentIDs, model.UnitChapter, since)
	if err != nil {
		return nil, err
	}
	byChapter := computeTrend(history)

	ids := make([]uint, 0, len(byChapter))
	for id := range byChapter {
		ids = append(ids, id)
	}
	titles, err := s.chapterTitles(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := &ClassTrend{ClassID: classID, WindowDays: days, Since: since, Chapters: make([]ChapterTrend, 0, len(ids))}
	for _, id := range ids {
		ct := byChapter[id]
		ct.ChapterTitle = titles[id].Title
		out.Improved += ct.Improved
		out.Declined += ct.Declined
		out.Chapters = append(out.Chapters, *ct)
	}
	return out, nil
}

// ---- homework ----

// swagger:model HomeworkStats
type HomeworkStats struct {
	HomeworkID        uint                             `json:"homeworkId"`
	Title             string                           `json:"title"`
	Status            model.HomeworkStatus             `json:"status"`
	ClassSize         int                              `json:"classSize"`
	SubmittedStudents int64                            `json:"submittedStudents"`
	StatusCounts      map[model.SubmissionStatus]int64 `json:"statusCounts"`
	repository.HomeworkScoreStats
}

// HomeworkStats 作业提交情况与平均分（百分制）
func (s *AnalyticsService) HomeworkStats(ctx context.Context, actor Actor, homeworkID uint) (*HomeworkStats, error) {
	hw, err := s.HomeworkRepo.FindByID(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	scope, err := s.classScope(ctx, actor, hw.ClassID)
	if err != nil {
		return nil, err
	}

	var out HomeworkStats
	key := fmt.Sprintf("analytics:homework:%d", homeworkID)
	err = s.cached(ctx, key, &out, func() (interface{}, error) {
		counts, err := s.AnalyticsRepo.SubmissionStatusCounts(ctx, homeworkID)
		if err != nil {
			return nil, err
		}
		scores, err := s.AnalyticsRepo.HomeworkScores(ctx, homeworkID)
		if err != nil {
			return nil, err
		}
		submitted, err := s.AnalyticsRepo.CountSubmittedStudents(ctx, homeworkID)
		if err != nil {
			return nil, err
		}
		stats := &HomeworkStats{
			HomeworkID:         hw.ID,
			Title:              hw.Title,
			Status:             hw.Status,
			ClassSize:          len(scope.StudentIDs),
			SubmittedStudents:  submitted,
			StatusCounts:       map[model.SubmissionStatus]int64{},
			HomeworkScoreStats: *scores,
		}
		for _, c := range counts {
			stats.StatusCounts[c.Status] = c.Count
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- student ----

// swagger:model StudentSummary
type StudentSummary struct {
	StudentID  uint                      `json:"studentId"`
	Name       string                    `json:"name"`
	TierCounts map[model.MasteryTier]int `json:"tierCounts"`
	Chapters   []model.ChapterMastery    `json:"chapters"`
	Engagement mastery.Engagement        `json:"engagement"`
}

// StudentSummary 学生各章节等级与活跃度；权限与掌握度查询一致
func (s *AnalyticsService) StudentSummary(ctx context.Context, actor Actor, studentID uint) (*StudentSummary, error) {
	student, err := s.Mastery.viewableStudent(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.Mastery.MasteryRepo.ListChaptersOfStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	engagement, err := s.Mastery.Engagement(ctx, studentID)
	if err != nil {
		return nil, err
	}

	counts := map[model.MasteryTier]int{model.TierA: 0, model.TierB: 0, model.TierC: 0}
	for _, ch := range chapters {
		counts[ch.Tier]++
	}
	return &StudentSummary{
		StudentID:  studentID,
		Name:       student.FullName(),
		TierCounts: counts,
		Chapters:   chapters,
		Engagement: engagement,
	}, nil
}

// ---- export ----

// Export 生成的文件；URL 仅在归档到对象存储后才有
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	URL         string `json:"url,omitempty"`
}

// ExportClassMastery 导出班级掌握度表：学生一行、章节一列，另附分布汇总页
func (s *AnalyticsService) ExportClassMastery(ctx context.Context, actor Actor, classID, textbookID uint) (*Export, error) {
	scope, err := s.classScope(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	dist, err := s.distribution(ctx, scope, textbookID)
	if err != nil {
		return nil, err
	}
	rows, err := s.AnalyticsRepo.ChapterMasteries(ctx, scope.StudentIDs, textbookID)
	if err != nil {
		return nil, err
	}
	students, err := s.UserRepo.FindByIDs(ctx, scope.StudentIDs)
	if err != nil {
		return nil, err
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].ID < students[j].ID
	})

	data, err := buildMasteryWorkbook(dist, students, rows)
	if err != nil {
		return nil, err
	}
	return &Export{
		Filename:    fmt.Sprintf("class-%d-mastery-%s.xlsx", classID, s.now().Format("20060102")),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

// ArchiveExport 把导出文件存入对象存储并返回访问地址
func (s *AnalyticsService) ArchiveExport(ctx context.Context, exp *Export) (*Export, error) {
	if s.Storage == nil {
		return exp, nil
	}
	url, err := s.Storage.Upload(ctx, ObjectKey("exports", exp.Filename), bytes.NewReader(exp.Data), int64(len(exp.Data)), exp.ContentType)
	if err != nil {
		return nil, fmt.Errorf("archive export: %w", err)
	}
	exp.URL = url
	return exp, nil
}

func buildMasteryWorkbook(dist *ClassDistribution, students []model.User, rows []model.ChapterMastery) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Mastery"
	f.SetSheetName("Sheet1", sheet)

	tiers := map[trendKey]model.ChapterMastery{}
	for _, m := range rows {
		tiers[trendKey{student: m.StudentID, chapter: m.ChapterID}] = m
	}

	header := []interface{}{"Student ID", "Student"}
	for _, ch := range dist.Chapters {
		header = append(header, ch.ChapterTitle)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, st := range students {
		row := []interface{}{st.ID, st.FullName()}
		for _, ch := range dist.Chapters {
			if m, ok := tiers[trendKey{student: st.ID, chapter: ch.ChapterID}]; ok {
				row = append(row, fmt.Sprintf("%s (%.1f)", m.Tier, m.AverageScore))
			} else {
				row = append(row, "")
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(summary, "A1", &[]interface{}{"Chapter", "A", "B", "C", "Unassessed"}); err != nil {
		return nil, err
	}
	for i, ch := range dist.Chapters {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summary, cell, &[]interface{}{ch.ChapterTitle, ch.A, ch.B, ch.C, ch.Unassessed}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
