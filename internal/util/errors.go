package util

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrForbidden          = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account disabled")
)

// ValidationError 输入或 AI 输出不合法
type ValidationError struct {
	Field   string
	Message string
	// Unprocessable 标记语义正确但内容无法处理的输入，例如 AI 返回的畸形 JSON
	Unprocessable bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewMalformedOutputError 表示模型输出无法解析或校验失败
func NewMalformedOutputError(format string, args ...interface{}) error {
	return &ValidationError{Field: "ai_output", Message: fmt.Sprintf(format, args...), Unprocessable: true}
}

// ConflictError 唯一约束冲突或重复提交
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

func NewConflictError(resource, message string) error {
	return &ConflictError{Resource: resource, Message: message}
}

type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// StateTransitionError 非法的状态流转
type StateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func NewStateTransitionError(entity, from, to string) error {
	return &StateTransitionError{Entity: entity, From: from, To: to}
}

// IsDuplicateKey 识别 mysql / postgres / sqlite 的唯一约束冲突
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// TranslateDBError 把 gorm 错误转换为领域错误
func TranslateDBError(err error, resource string, id interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError(resource, id)
	case IsDuplicateKey(err):
		return NewConflictError(resource, "already exists")
	default:
		return err
	}
}
