package controller

import (
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController 处理用户相关的HTTP请求
type UserController struct {
	UserService *service.UserService
}

// NewUserController 创建一个新的用户控制器实例
func NewUserController(userService *service.UserService) *UserController {
	return &UserController{
		UserService: userService,
	}
}

// SetActiveRequest 启用或禁用账号
// swagger:model SetActiveRequest
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CreateUser godoc
// @Summary 创建用户
// @Description 管理员在本校创建用户，超级管理员可指定学校
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateUserInput true "用户信息"
// @Success 201 {object} util.Response{data=model.User}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已存在"
// @Router /api/users [post]
func (c *UserController) CreateUser(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CreateUserInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user, err := c.UserService.CreateUser(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// GetUsers godoc
// @Summary 获取用户列表
// @Description 获取用户列表，支持分页和筛选
// @Tags 用户管理
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页条数" default(20)
// @Param   role query string false "角色筛选"
// @Param   search query string false "搜索关键词"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/users [get]
func (c *UserController) GetUsers(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, limit := util.ParsePagination(ctx)
	filter := repository.UserFilter{
		Role:    model.UserRole(ctx.Query("role")),
		Keyword: ctx.Query("search"),
	}
	users, total, err := c.UserService.ListUsers(ctx.Request.Context(), actor, filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: users, Total: total, Page: page, Limit: limit})
}

// GetUser godoc
// @Summary 获取用户详情
// @Tags 用户管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response{data=model.User}
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, err := c.UserService.GetUser(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// SetActive godoc
// @Summary 启用/禁用用户
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "用户ID"
// @Param   body body SetActiveRequest true "状态"
// @Success 200 {object} util.Response
// @Router /api/users/{id}/active [put]
func (c *UserController) SetActive(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.UserService.SetActive(ctx.Request.Context(), actor, id, *req.Active); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
