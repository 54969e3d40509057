package service

import (
	"context"
	"testing"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/testutil"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-test-secret-test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Grading.AIConfidenceThreshold = 0.8
	cfg.Grading.DefaultLatePenalty = 0.8
	cfg.Mastery.StreakTarget = 7
	cfg.Mastery.ActivityWindow = 14
	cfg.Analytics.StrugglingThreshold = 0.5
	cfg.Analytics.TrendWindowDays = 30
	cfg.RAG.TopK = 3
	cfg.RAG.MinScore = 0.1
	cfg.RAG.HistoryLimit = 6
	return cfg
}

func TestLogin(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	users := repository.NewUserRepository(db)
	svc := NewAuthService(users, cfg)
	ctx := context.Background()

	hashed, err := HashPassword("correct horse")
	require.NoError(t, err)
	u := &model.User{Email: "Ana@Example.com", Password: hashed, Role: model.Teacher, IsActive: true}
	require.NoError(t, users.Create(ctx, u))

	token, got, err := svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := util.ParseJWT(token, cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.Teacher, claims.Role)

	_, _, err = svc.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "x")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	require.NoError(t, users.SetActive(ctx, u.ID, false))
	_, _, err = svc.Login(ctx, "ana@example.com", "correct horse")
	assert.ErrorIs(t, err, util.ErrAccountDisabled)
}

func TestChangePassword(t *testing.T) {
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	svc := NewAuthService(users, testConfig())
	ctx := context.Background()

	hashed, _ := HashPassword("old-password")
	u := &model.User{Email: "b@example.com", Password: hashed, Role: model.Student, IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	actor := Actor{UserID: u.ID, Role: u.Role}

	var ve *util.ValidationError
	assert.ErrorAs(t, svc.ChangePassword(ctx, actor, "old-password", "short"), &ve)
	assert.ErrorIs(t, svc.ChangePassword(ctx, actor, "nope", "new-password"), util.ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, actor, "old-password", "new-password"))

	_, _, err := svc.Login(ctx, "b@example.com", "new-password")
	assert.NoError(t, err)
}
