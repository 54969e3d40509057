package util

import (
	"errors"
	"net/http"
	"strconv"

	"ai_mentor_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}

// HandleError 将领域错误映射为 HTTP 状态码，未知错误只记录日志并返回 500
func HandleError(c *gin.Context, err error) {
	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
		notFoundErr   *NotFoundError
		transitionErr *StateTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		if validationErr.Unprocessable {
			Error(c, http.StatusUnprocessableEntity, validationErr.Error())
			return
		}
		BadRequest(c, validationErr.Error())
	case errors.As(err, &conflictErr):
		Error(c, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &notFoundErr):
		Error(c, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &transitionErr):
		Error(c, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, ErrForbidden):
		Forbidden(c)
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
		Error(c, http.StatusUnauthorized, err.Error())
	default:
		LogInternalError(c, err)
	}
}

// ParseIDParam 读取路径中的数字 ID
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// ParsePagination 读取 page/limit 查询参数
func ParsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
