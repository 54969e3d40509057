package controller

import (
	"ai_mentor_backend/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Hub *service.NotificationHub
}

func NewNotificationController(hub *service.NotificationHub) *NotificationController {
	return &NotificationController{Hub: hub}
}

// Connect godoc
// @Summary 建立通知长连接
// @Description 升级为 WebSocket，推送作业发布、关闭与成绩通知。浏览器可通过 token 查询参数传递 JWT
// @Tags 通知
// @Param token query string false "JWT"
// @Security BearerAuth
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} util.Response
// @Router /api/ws [get]
func (c *NotificationController) Connect(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, actor.UserID)
}
