package service

import (
	"context"
	"errors"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Login 校验邮箱密码并签发 JWT
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		var nf *util.NotFoundError
		if errors.As(err, &nf) {
			return "", nil, util.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, util.ErrAccountDisabled
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	logger.Log.Info("用户登录", zap.Uint("userID", user.ID), zap.String("role", string(user.Role)))
	return token, user, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, actor Actor) (*model.User, error) {
	return s.UserRepo.FindByID(ctx, actor.UserID)
}

// ChangePassword 需要提供旧密码
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return util.NewValidationError("newPassword", "must be at least 8 characters")
	}
	user, err := s.UserRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return util.ErrInvalidCredentials
	}
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.UserRepo.Update(ctx, user)
}
