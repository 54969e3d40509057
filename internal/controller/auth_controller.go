package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// LoginRequest defines model for login
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// Login godoc
// @Summary 用户登录
// @Description 使用邮箱和密码登录，返回 JWT
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"token": token, "user": user})
}

// Me godoc
// @Summary 当前用户信息
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.User}
// @Router /api/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	user, err := c.AuthService.CurrentUser(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ChangePassword godoc
// @Summary 修改密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ChangePasswordRequest true "新旧密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "旧密码错误"
// @Router /api/me/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AuthService.ChangePassword(ctx.Request.Context(), actor, req.OldPassword, req.NewPassword); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
