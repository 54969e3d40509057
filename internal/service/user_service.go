package service

import (
	"context"
	"errors"
	"strings"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CreateUserInput 管理员创建账号
// swagger:model CreateUserInput
type CreateUserInput struct {
	Email     string         `json:"email" binding:"required,email"`
	Password  string         `json:"password" binding:"required,min=8"`
	Role      model.UserRole `json:"role" binding:"required,user_role"`
	FirstName string         `json:"firstName" binding:"required,notblank"`
	LastName  string         `json:"lastName"`
	SchoolID  *uint          `json:"schoolId"`
}

// UserService 处理用户相关的业务逻辑
type UserService struct {
	UserRepo   *repository.UserRepository
	SchoolRepo *repository.SchoolRepository
}

func NewUserService(userRepo *repository.UserRepository, schoolRepo *repository.SchoolRepository) *UserService {
	return &UserService{UserRepo: userRepo, SchoolRepo: schoolRepo}
}

// CreateUser 管理员只能在本校创建非超级管理员账号
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*model.User, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, util.NewValidationError("role", "unknown role %q", in.Role)
	}

	schoolID := in.SchoolID
	switch {
	case in.Role == model.SuperAdmin:
		if !actor.IsSuperAdmin() {
			return nil, util.ErrForbidden
		}
		schoolID = nil
	case actor.IsAdmin():
		schoolID = actor.SchoolID
	case schoolID == nil:
		return nil, util.NewValidationError("schoolId", "required for role %s", in.Role)
	}

	if schoolID != nil {
		if _, err := s.SchoolRepo.FindByID(ctx, *schoolID); err != nil {
			return nil, err
		}
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		SchoolID:  schoolID,
		Email:     in.Email,
		Password:  hashed,
		Role:      in.Role,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsActive:  true,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Log.Info("创建用户", zap.Uint("userID", user.ID), zap.String("role", string(user.Role)), zap.Uint("by", actor.UserID))
	return user, nil
}

// BootstrapAdminInput 命令行初始化平台账号
type BootstrapAdminInput struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	FirstName string `validate:"required"`
	LastName  string
}

// CreateSuperAdmin 新库没有任何账号时由命令行调用，不需要登录
func (s *UserService) CreateSuperAdmin(ctx context.Context, in BootstrapAdminInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	if err := validator.New().Struct(in); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return nil, util.NewValidationError(strings.ToLower(ve[0].Field()), "failed on %s", ve[0].Tag())
		}
		return nil, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:     in.Email,
		Password:  hashed,
		Role:      model.SuperAdmin,
		FirstName: in.FirstName,
		LastName:  strings.TrimSpace(in.LastName),
		IsActive:  true,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Log.Info("初始化超级管理员", zap.Uint("userID", user.ID), zap.String("email", user.Email))
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, actor Actor, id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == user.ID || actor.IsSuperAdmin() {
		return user, nil
	}
	if actor.Role == model.Student || user.SchoolID == nil || !actor.InSchool(*user.SchoolID) {
		return nil, util.ErrForbidden
	}
	return user, nil
}

// ListUsers 超级管理员可跨校查询
func (s *UserService) ListUsers(ctx context.Context, actor Actor, filter repository.UserFilter, page, limit int) ([]model.User, int64, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin, model.Teacher); err != nil {
		return nil, 0, err
	}
	if !actor.IsSuperAdmin() {
		filter.SchoolID = actor.SchoolID
	}
	return s.UserRepo.List(ctx, filter, page, limit)
}

func (s *UserService) SetActive(ctx context.Context, actor Actor, id uint, active bool) error {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return err
	}
	user, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID {
		return util.NewValidationError("id", "cannot change own status")
	}
	if !actor.IsSuperAdmin() && (user.SchoolID == nil || !actor.InSchool(*user.SchoolID) || user.Role == model.SuperAdmin) {
		return util.ErrForbidden
	}
	return s.UserRepo.SetActive(ctx, id, active)
}
