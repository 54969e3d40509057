package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentActor 从 JWT claims 构造 Actor；未登录时直接返回 401
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

// queryUint 可选的数字查询参数，缺省或非法时为 0
func queryUint(ctx *gin.Context, name string) uint {
	v, err := strconv.ParseUint(ctx.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// handleLLMError 模型服务不可用或限流时返回 502/429，其余按领域错误处理
func handleLLMError(ctx *gin.Context, err error) {
	var (
		unavailable *llm.ErrProviderUnavailable
		rateLimit   *llm.ErrRateLimit
	)
	switch {
	case errors.As(err, &rateLimit):
		util.Error(ctx, http.StatusTooManyRequests, "AI provider rate limited")
	case errors.As(err, &unavailable), errors.Is(err, context.DeadlineExceeded):
		util.Error(ctx, http.StatusBadGateway, "AI provider unavailable")
	default:
		util.HandleError(ctx, err)
	}
}
