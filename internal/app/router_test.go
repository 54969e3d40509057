package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/testutil"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	app    *App
	router *gin.Engine
	f      *testutil.Fixture
}

func newTestServer(t *testing.T, provider llm.Provider) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 2)
	s := serverOn(t, db, provider)
	s.f = f
	return s
}

func serverOn(t *testing.T, db *gorm.DB, provider llm.Provider) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.JWT.Secret = "router-test-secret-router-test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Mastery.TierAThreshold = 80
	cfg.Mastery.TierBThreshold = 50
	cfg.Grading.DefaultLatePenalty = 0.8
	cfg.Grading.AIConfidenceThreshold = 0.7
	cfg.Analytics.StrugglingThreshold = 0.4
	cfg.Analytics.TrendWindowDays = 30

	a := newApp(cfg, db, nil, provider, llm.NewHashEmbedder(64))
	t.Cleanup(a.services.hub.Stop)
	router, err := a.buildRouter()
	require.NoError(t, err)
	return &testServer{app: a, router: router}
}

func (s *testServer) token(t *testing.T, u model.User) string {
	t.Helper()
	token, err := util.GenerateJWT(&u, s.app.Config.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, llm.NewMockProvider())

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLoginAndAuth(t *testing.T) {
	s := newTestServer(t, llm.NewMockProvider())
	hashed, err := service.HashPassword("correct horse battery")
	require.NoError(t, err)
	require.NoError(t, s.app.DB.Model(&model.User{}).Where("id = ?", s.f.Teacher.ID).Update("password", hashed).Error)

	w := s.do(t, http.MethodPost, "/api/login", "", gin.H{"email": s.f.Teacher.Email, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"email": s.f.Teacher.Email, "password": "correct horse battery"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decodeData(t, w, &login)
	require.NotEmpty(t, login.Token)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", "not-a-token", nil).Code)

	w = s.do(t, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.User
	decodeData(t, w, &me)
	assert.Equal(t, s.f.Teacher.ID, me.ID)
}

func TestCreateSuperAdminOnFreshDatabase(t *testing.T) {
	s := serverOn(t, testutil.NewDB(t), llm.NewMockProvider())
	ctx := context.Background()

	_, err := s.app.CreateSuperAdmin(ctx, service.BootstrapAdminInput{Email: "root@example.com", Password: "short", FirstName: "Root"})
	var ve *util.ValidationError
	require.ErrorAs(t, err, &ve)

	admin, err := s.app.CreateSuperAdmin(ctx, service.BootstrapAdminInput{Email: " Root@Example.com ", Password: "bootstrap-pass", FirstName: "Root"})
	require.NoError(t, err)
	assert.Equal(t, model.SuperAdmin, admin.Role)
	assert.Nil(t, admin.SchoolID)

	// 邮箱唯一
	_, err = s.app.CreateSuperAdmin(ctx, service.BootstrapAdminInput{Email: "root@example.com", Password: "bootstrap-pass", FirstName: "Again"})
	var ce *util.ConflictError
	assert.ErrorAs(t, err, &ce)

	w := s.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "root@example.com", "password": "bootstrap-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &login)

	w = s.do(t, http.MethodPost, "/api/schools", login.Token, gin.H{"name": "First School", "code": "FS-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var school model.School
	decodeData(t, w, &school)

	w = s.do(t, http.MethodPost, "/api/users", login.Token, gin.H{
		"email": "head@example.com", "password": "school-admin", "role": "admin", "firstName": "Head", "schoolId": school.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRoleGroups(t *testing.T) {
	s := newTestServer(t, llm.NewMockProvider())
	student := s.token(t, s.f.Students[0])
	teacher := s.token(t, s.f.Teacher)
	admin := s.token(t, s.f.Admin)

	distribution := fmt.Sprintf("/api/classes/%d/analytics/distribution?textbookId=%d", s.f.Class.ID, s.f.Textbook.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, distribution, student, nil).Code)

	w := s.do(t, http.MethodGet, distribution, teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dist service.ClassDistribution
	decodeData(t, w, &dist)
	assert.Equal(t, 2, dist.Students)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/users", teacher, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/users", admin, nil).Code)

	// 管理员拥有教师权限
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/classes", admin, nil).Code)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t, llm.Disabled(errors.New("no api key")))
	teacher := s.token(t, s.f.Teacher)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/homework/9999", teacher, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/homework/abc", teacher, nil).Code)

	w := s.do(t, http.MethodPost, "/api/homework", teacher, gin.H{
		"classId": s.f.Class.ID,
		"title":   "   ",
		"dueDate": time.Now().Add(48 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "blank title")

	w = s.do(t, http.MethodPost, "/api/homework", teacher, gin.H{
		"classId": s.f.Class.ID,
		"title":   "Equations",
		"dueDate": time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var hw model.Homework
	decodeData(t, w, &hw)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/tasks", hw.ID), teacher, gin.H{
		"title":       "Practice",
		"paragraphId": s.f.Paragraphs[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task model.HomeworkTask
	decodeData(t, w, &task)

	// 空任务不能发布
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/publish", hw.ID), teacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework-tasks/%d/generate", task.ID), teacher, gin.H{
		"count":      2,
		"difficulty": "easy",
		"bloomLevel": "remember",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGenerateQuestionsOverHTTP(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Content: "```json\n[{\"questionType\":\"short_answer\",\"text\":\"Solve x+1=3\",\"acceptedAnswers\":[\"2\"],\"points\":1}]\n```"})
	s := newTestServer(t, provider)
	teacher := s.token(t, s.f.Teacher)

	w := s.do(t, http.MethodPost, "/api/homework", teacher, gin.H{
		"classId": s.f.Class.ID,
		"title":   "Equations",
		"dueDate": time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var hw model.Homework
	decodeData(t, w, &hw)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/tasks", hw.ID), teacher, gin.H{
		"title":       "Practice",
		"paragraphId": s.f.Paragraphs[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var task model.HomeworkTask
	decodeData(t, w, &task)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework-tasks/%d/generate", task.ID), teacher, gin.H{
		"count":      1,
		"difficulty": "easy",
		"bloomLevel": "apply",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var questions []model.HomeworkTaskQuestion
	decodeData(t, w, &questions)
	require.Len(t, questions, 1)
	assert.Equal(t, "Solve x+1=3", questions[0].Text)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/publish", hw.ID), teacher, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 已发布的作业不能再出题
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework-tasks/%d/generate", task.ID), teacher, gin.H{
		"count":      1,
		"difficulty": "easy",
		"bloomLevel": "apply",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportDownload(t *testing.T) {
	s := newTestServer(t, llm.NewMockProvider())
	teacher := s.token(t, s.f.Teacher)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/classes/%d/analytics/export?textbookId=%d", s.f.Class.ID, s.f.Textbook.ID), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestPublishPushesNotification(t *testing.T) {
	s := newTestServer(t, llm.NewMockProvider())
	teacher := s.token(t, s.f.Teacher)
	student := s.f.Students[0]

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + s.token(t, student)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.app.services.hub.IsOnline(student.ID) }, time.Second, 10*time.Millisecond)

	w := s.do(t, http.MethodPost, "/api/homework", teacher, gin.H{
		"classId": s.f.Class.ID,
		"title":   "Fractions",
		"dueDate": time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var hw model.Homework
	decodeData(t, w, &hw)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/tasks", hw.ID), teacher, gin.H{"title": "Warm up"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task model.HomeworkTask
	decodeData(t, w, &task)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework-tasks/%d/questions", task.ID), teacher, gin.H{
		"questions": []gin.H{{
			"questionType":    "short_answer",
			"text":            "1/2 + 1/2 = ?",
			"acceptedAnswers": []string{"1"},
			"points":          1,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/homework/%d/publish", hw.ID), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string `json:"type"`
		Data struct {
			HomeworkID uint   `json:"homeworkId"`
			Title      string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, service.EventHomeworkPublished, event.Type)
	assert.Equal(t, hw.ID, event.Data.HomeworkID)
	assert.Equal(t, "Fractions", event.Data.Title)
}
