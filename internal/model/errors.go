package model

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，调用方按分类分支处理而不是匹配错误文本
type ErrorKind int

const (
	KindInternal     ErrorKind = iota // 内部错误
	KindValidation                    // 输入不合法，未发生任何写入
	KindUnauthorized                  // 鉴权拒绝，不泄露目标是否存在
	KindNotFound                      // 目标不存在（仅对读操作单独暴露）
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// AccessUnauthorized 所有鉴权拒绝统一对外展示的提示
const AccessUnauthorized = "Access unauthorized."

// AppError 业务错误
// Field 用于字段级校验提示；Reason 记录鉴权拒绝的内部原因，只写日志不对外展示
type AppError struct {
	Kind    ErrorKind
	Message string
	Field   string
	Reason  string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Code 返回对外的错误码
func (e *AppError) Code() string {
	return e.Kind.String()
}

// 预定义错误
var (
	ErrIncorrectPassword = &AppError{Kind: KindUnauthorized, Message: "Incorrect password", Reason: "bad credential", Field: "password"}
	ErrSelfLike          = &AppError{Kind: KindUnauthorized, Message: AccessUnauthorized, Reason: "self-like"}
)

func NewValidationError(field, message string) *AppError {
	return &AppError{Kind: KindValidation, Field: field, Message: message}
}

// NewUnauthorizedError 鉴权拒绝，reason 仅用于日志
func NewUnauthorizedError(reason string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: AccessUnauthorized, Reason: reason}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s with ID %v not found", resource, id)}
}

func NewInternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf 获取错误分类，非 AppError 视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
