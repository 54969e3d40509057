package service

import (
	"context"
	"strings"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
)

// swagger:model CreateSchoolInput
type CreateSchoolInput struct {
	Name string `json:"name" binding:"required,notblank"`
	Code string `json:"code" binding:"required,notblank"`
}

// swagger:model CreateClassInput
type CreateClassInput struct {
	Name         string `json:"name" binding:"required,notblank"`
	GradeLevel   int    `json:"gradeLevel" binding:"min=0,max=12"`
	AcademicYear string `json:"academicYear"`
	SchoolID     uint   `json:"schoolId"`
}

type SchoolService struct {
	SchoolRepo *repository.SchoolRepository
	UserRepo   *repository.UserRepository
	Access     *Access
}

func NewSchoolService(schoolRepo *repository.SchoolRepository, userRepo *repository.UserRepository, access *Access) *SchoolService {
	return &SchoolService{SchoolRepo: schoolRepo, UserRepo: userRepo, Access: access}
}

func (s *SchoolService) CreateSchool(ctx context.Context, actor Actor, in CreateSchoolInput) (*model.School, error) {
	if err := actor.Require(model.SuperAdmin); err != nil {
		return nil, err
	}
	school := &model.School{
		Name:     strings.TrimSpace(in.Name),
		Code:     strings.ToUpper(strings.TrimSpace(in.Code)),
		IsActive: true,
	}
	if err := s.SchoolRepo.Create(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

func (s *SchoolService) ListSchools(ctx context.Context, actor Actor) ([]model.School, error) {
	if actor.IsSuperAdmin() {
		return s.SchoolRepo.List(ctx)
	}
	if actor.SchoolID == nil {
		return []model.School{}, nil
	}
	school, err := s.SchoolRepo.FindByID(ctx, *actor.SchoolID)
	if err != nil {
		return nil, err
	}
	return []model.School{*school}, nil
}

func (s *SchoolService) CreateClass(ctx context.Context, actor Actor, in CreateClassInput) (*model.SchoolClass, error) {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return nil, err
	}
	schoolID := in.SchoolID
	if !actor.IsSuperAdmin() {
		schoolID = *actor.SchoolID
	}
	if schoolID == 0 {
		return nil, util.NewValidationError("schoolId", "required")
	}
	if _, err := s.SchoolRepo.FindByID(ctx, schoolID); err != nil {
		return nil, err
	}
	class := &model.SchoolClass{
		SchoolID:     schoolID,
		Name:         strings.TrimSpace(in.Name),
		GradeLevel:   in.GradeLevel,
		AcademicYear: in.AcademicYear,
	}
	if err := s.SchoolRepo.CreateClass(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

// ListClasses 教师只看到自己任教的班级
func (s *SchoolService) ListClasses(ctx context.Context, actor Actor) ([]model.SchoolClass, error) {
	switch actor.Role {
	case model.Teacher:
		return s.SchoolRepo.ListClassesOfTeacher(ctx, actor.UserID)
	case model.Admin:
		return s.SchoolRepo.ListClasses(ctx, *actor.SchoolID)
	case model.SuperAdmin:
		return s.SchoolRepo.ListClasses(ctx, 0)
	}
	return nil, util.ErrForbidden
}

func (s *SchoolService) GetClass(ctx context.Context, actor Actor, id uint) (*model.SchoolClass, error) {
	class, err := s.SchoolRepo.FindClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Access.ViewClass(ctx, actor, class); err != nil {
		return nil, err
	}
	return class, nil
}

// ClassRoster 班级学生名单
func (s *SchoolService) ClassRoster(ctx context.Context, actor Actor, classID uint) ([]model.User, error) {
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
	return s.UserRepo.FindByIDs(ctx, ids)
}

// AddMember 按用户角色加入学生或教师名单
func (s *SchoolService) AddMember(ctx context.Context, actor Actor, classID, userID uint) error {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return err
	}
	class, err := s.SchoolRepo.FindClass(ctx, classID)
	if err != nil {
		return err
	}
	if !actor.InSchool(class.SchoolID) {
		return util.ErrForbidden
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.SchoolID == nil || *user.SchoolID != class.SchoolID {
		return util.NewValidationError("userId", "user belongs to another school")
	}
	switch user.Role {
	case model.Student:
		return s.SchoolRepo.AddStudent(ctx, classID, userID)
	case model.Teacher:
		return s.SchoolRepo.AddTeacher(ctx, classID, userID)
	}
	return util.NewValidationError("userId", "only students and teachers can join a class")
}

func (s *SchoolService) RemoveStudent(ctx context.Context, actor Actor, classID, studentID uint) error {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return err
	}
	class, err := s.SchoolRepo.FindClass(ctx, classID)
	if err != nil {
		return err
	}
	if !actor.InSchool(class.SchoolID) {
		return util.ErrForbidden
	}
	return s.SchoolRepo.RemoveStudent(ctx, classID, studentID)
}

func (s *SchoolService) DeleteClass(ctx context.Context, actor Actor, classID uint) error {
	if err := actor.Require(model.SuperAdmin, model.Admin); err != nil {
		return err
	}
	class, err := s.SchoolRepo.FindClass(ctx, classID)
	if err != nil {
		return err
	}
	if !actor.InSchool(class.SchoolID) {
		return util.ErrForbidden
	}
	return s.SchoolRepo.DeleteClass(ctx, classID)
}
