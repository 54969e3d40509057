package service

import (
	"context"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/util"
)

// Actor 当前操作者，由 JWT claims 转换而来，传入每个服务方法
type Actor struct {
	UserID   uint
	Role     model.UserRole
	SchoolID *uint
}

func ActorFromClaims(claims *util.Claims) Actor {
	return Actor{UserID: claims.UserID, Role: claims.Role, SchoolID: claims.SchoolID}
}

func (a Actor) IsSuperAdmin() bool { return a.Role == model.SuperAdmin }
func (a Actor) IsAdmin() bool      { return a.Role == model.Admin }
func (a Actor) IsTeacher() bool    { return a.Role == model.Teacher }
func (a Actor) IsStudent() bool    { return a.Role == model.Student }

// InSchool 超级管理员属于所有学校
func (a Actor) InSchool(schoolID uint) bool {
	if a.IsSuperAdmin() {
		return true
	}
	return a.SchoolID != nil && *a.SchoolID == schoolID
}

// Require 角色白名单检查
func (a Actor) Require(roles ...model.UserRole) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return util.ErrForbidden
}

// SchoolScope 列表查询的学校范围，超级管理员不限
func (a Actor) SchoolScope() *uint {
	if a.IsSuperAdmin() {
		return nil
	}
	return a.SchoolID
}

// Access 需要查库的权限检查
type Access struct {
	Schools *repository.SchoolRepository
}

func NewAccess(schools *repository.SchoolRepository) *Access {
	return &Access{Schools: schools}
}

// ManageClass 管理员管理本校班级，教师只能管理自己任教的班级
func (ac *Access) ManageClass(ctx context.Context, actor Actor, class *model.SchoolClass) error {
	if !actor.InSchool(class.SchoolID) {
		return util.ErrForbidden
	}
	switch actor.Role {
	case model.SuperAdmin, model.Admin:
		return nil
	case model.Teacher:
		ok, err := ac.Schools.IsTeacherOfClass(ctx, actor.UserID, class.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return util.ErrForbidden
}

// ViewClass 在 ManageClass 基础上允许班级学生查看
func (ac *Access) ViewClass(ctx context.Context, actor Actor, class *model.SchoolClass) error {
	if actor.IsStudent() {
		if !actor.InSchool(class.SchoolID) {
			return util.ErrForbidden
		}
		ok, err := ac.Schools.IsStudentInClass(ctx, actor.UserID, class.ID)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrForbidden
		}
		return nil
	}
	return ac.ManageClass(ctx, actor, class)
}

// ViewStudent 学生本人、其任课教师、本校管理员可查看
func (ac *Access) ViewStudent(ctx context.Context, actor Actor, student *model.User) error {
	if student.Role != model.Student {
		return util.NewNotFoundError("student", student.ID)
	}
	switch actor.Role {
	case model.SuperAdmin:
		return nil
	case model.Admin:
		if student.SchoolID != nil && actor.InSchool(*student.SchoolID) {
			return nil
		}
	case model.Teacher:
		ok, err := ac.Schools.TeacherHasStudent(ctx, actor.UserID, student.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	case model.Student:
		if actor.UserID == student.ID {
			return nil
		}
	}
	return util.ErrForbidden
}

// EditContent 全局教材仅超级管理员可改，本校教材管理员和教师可改
func (a Actor) EditContent(tb *model.Textbook) error {
	if tb.SchoolID == nil {
		if a.IsSuperAdmin() {
			return nil
		}
		return util.ErrForbidden
	}
	if !a.InSchool(*tb.SchoolID) || a.IsStudent() {
		return util.ErrForbidden
	}
	return nil
}

// ViewContent 全局教材所有人可见
func (a Actor) ViewContent(tb *model.Textbook) error {
	if tb.SchoolID == nil || a.InSchool(*tb.SchoolID) {
		return nil
	}
	return util.ErrForbidden
}
