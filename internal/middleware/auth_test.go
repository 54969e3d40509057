package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret-middleware-test"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(secret))
	api.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/teach", RoleMiddleware(model.Teacher), func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/admin", RoleMiddleware(model.Admin), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func tokenFor(t *testing.T, role model.UserRole) string {
	t.Helper()
	token, err := util.GenerateJWT(&model.User{BaseModel: model.BaseModel{ID: 1}, Role: role, Email: "u@school.example"}, secret, time.Hour)
	require.NoError(t, err)
	return token
}

func get(r *gin.Engine, path, bearer string, header http.Header) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestQueryTokenOnlyForWebSocketUpgrade(t *testing.T) {
	r := newEngine()
	token := tokenFor(t, model.Student)

	assert.Equal(t, http.StatusOK, get(r, "/api/me", token, nil))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me?token="+token, "", nil))

	upgrade := http.Header{"Connection": {"Upgrade"}, "Upgrade": {"websocket"}}
	assert.Equal(t, http.StatusOK, get(r, "/api/me?token="+token, "", upgrade))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me?token=garbage", "", upgrade))
}

func TestRoleHierarchy(t *testing.T) {
	r := newEngine()

	cases := []struct {
		role  model.UserRole
		teach int
		admin int
	}{
		{model.Student, http.StatusForbidden, http.StatusForbidden},
		{model.Teacher, http.StatusOK, http.StatusForbidden},
		{model.Admin, http.StatusOK, http.StatusOK},
		{model.SuperAdmin, http.StatusOK, http.StatusOK},
	}
	for _, tc := range cases {
		token := tokenFor(t, tc.role)
		assert.Equal(t, tc.teach, get(r, "/api/teach", token, nil), tc.role)
		assert.Equal(t, tc.admin, get(r, "/api/admin", token, nil), tc.role)
	}
}
