package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ChatController 学习助手会话
type ChatController struct {
	ChatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) *ChatController {
	return &ChatController{ChatService: chatService}
}

// @Summary 新建会话
// @Tags 学习助手
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateSessionInput false "绑定教材与标题"
// @Success 201 {object} util.Response{data=model.ChatSession}
// @Router /api/chat/sessions [post]
func (c *ChatController) CreateSession(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CreateSessionInput
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&in); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	session, err := c.ChatService.CreateSession(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// @Summary 我的会话
// @Tags 学习助手
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.ChatSession}
// @Router /api/chat/sessions [get]
func (c *ChatController) ListSessions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.ChatService.ListSessions(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 会话详情
// @Tags 学习助手
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionDetail}
// @Router /api/chat/sessions/{id} [get]
func (c *ChatController) GetSession(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.ChatService.GetSession(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 删除会话
// @Tags 学习助手
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/chat/sessions/{id} [delete]
func (c *ChatController) DeleteSession(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ChatService.DeleteSession(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 提问
// @Description 检索教材段落后由模型回答，回答附带引用
// @Tags 学习助手
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Param body body service.AskInput true "问题"
// @Success 200 {object} util.Response{data=service.ChatReply}
// @Failure 502 {object} util.Response "模型服务不可用"
// @Router /api/chat/sessions/{id}/messages [post]
func (c *ChatController) Ask(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.AskInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	reply, err := c.ChatService.Ask(ctx.Request.Context(), actor, id, in)
	if err != nil {
		handleLLMError(ctx, err)
		return
	}
	util.Success(ctx, reply)
}
