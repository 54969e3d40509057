package service

import (
	"testing"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/testutil"

	"gorm.io/gorm"
)

// clock 每次调用前进一分钟，保证评分时间有序
type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type harness struct {
	db  *gorm.DB
	f   *testutil.Fixture
	cfg *config.Config
	clk *clock

	access      *Access
	mastery     *MasteryService
	tests       *TestService
	homework    *HomeworkService
	submissions *SubmissionService
}

func newHarness(t *testing.T, students int) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	h := &harness{
		db:  db,
		f:   testutil.Seed(t, db, students),
		cfg: testConfig(),
		clk: &clock{t: time.Now().Add(-48 * time.Hour)},
	}

	h.access = NewAccess(repository.NewSchoolRepository(db))
	h.mastery = NewMasteryService(db, h.cfg.Mastery, h.access)
	h.mastery.now = h.clk.Now
	h.tests = NewTestService(db, repository.NewTestRepository(db), repository.NewContentRepository(db), h.mastery)
	h.tests.now = h.clk.Now
	h.homework = NewHomeworkService(db, h.access, h.cfg.Grading)
	h.homework.now = h.clk.Now
	h.submissions = NewSubmissionService(db, h.access, nil, h.cfg.Grading)
	h.submissions.now = h.clk.Now
	return h
}

func (h *harness) withGrader(provider llm.Provider) {
	h.submissions.Grader = NewAIGrader(provider, h.cfg.Grading)
}

func (h *harness) teacher() Actor { return actorOf(h.f.Teacher) }
func (h *harness) student(i int) Actor {
	return actorOf(h.f.Students[i])
}
