package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SchoolController 学校与班级管理
type SchoolController struct {
	SchoolService *service.SchoolService
}

func NewSchoolController(schoolService *service.SchoolService) *SchoolController {
	return &SchoolController{SchoolService: schoolService}
}

// AddMemberRequest
// swagger:model AddMemberRequest
type AddMemberRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

// @Summary 创建学校
// @Tags 学校管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateSchoolInput true "学校信息"
// @Success 201 {object} util.Response{data=model.School}
// @Failure 409 {object} util.Response "学校代码已存在"
// @Router /api/schools [post]
func (c *SchoolController) CreateSchool(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CreateSchoolInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	school, err := c.SchoolService.CreateSchool(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, school)
}

// @Summary 学校列表
// @Tags 学校管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.School}
// @Router /api/schools [get]
func (c *SchoolController) ListSchools(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	schools, err := c.SchoolService.ListSchools(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, schools)
}

// @Summary 创建班级
// @Tags 班级管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateClassInput true "班级信息"
// @Success 201 {object} util.Response{data=model.SchoolClass}
// @Router /api/classes [post]
func (c *SchoolController) CreateClass(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CreateClassInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	class, err := c.SchoolService.CreateClass(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, class)
}

// @Summary 班级列表
// @Description 管理员看到本校全部班级，教师看到任教班级，学生看到所在班级
// @Tags 班级管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.SchoolClass}
// @Router /api/classes [get]
func (c *SchoolController) ListClasses(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	classes, err := c.SchoolService.ListClasses(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, classes)
}

// @Summary 班级详情
// @Tags 班级管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Success 200 {object} util.Response{data=model.SchoolClass}
// @Router /api/classes/{id} [get]
func (c *SchoolController) GetClass(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	class, err := c.SchoolService.GetClass(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, class)
}

// @Summary 班级学生名单
// @Tags 班级管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /api/classes/{id}/students [get]
func (c *SchoolController) Roster(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	students, err := c.SchoolService.ClassRoster(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

// @Summary 添加班级成员
// @Description 按用户角色加入学生名单或任课教师
// @Tags 班级管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param body body AddMemberRequest true "用户"
// @Success 200 {object} util.Response
// @Router /api/classes/{id}/members [post]
func (c *SchoolController) AddMember(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.SchoolService.AddMember(ctx.Request.Context(), actor, id, req.UserID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 移出学生
// @Tags 班级管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param studentId path int true "学生ID"
// @Success 200 {object} util.Response
// @Router /api/classes/{id}/students/{studentId} [delete]
func (c *SchoolController) RemoveStudent(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	studentID, ok := util.ParseIDParam(ctx, "studentId")
	if !ok {
		return
	}
	if err := c.SchoolService.RemoveStudent(ctx.Request.Context(), actor, id, studentID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 删除班级
// @Tags 班级管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Success 200 {object} util.Response
// @Router /api/classes/{id} [delete]
func (c *SchoolController) DeleteClass(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.SchoolService.DeleteClass(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
