// Package apperr 定义业务错误分类，HTTP 层据此映射状态码
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindLimitExceeded
	KindConfiguration
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建业务错误
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation 参数校验失败
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// LimitExceeded 超出实验限制
func LimitExceeded(format string, args ...any) *Error {
	return New(KindLimitExceeded, format, args...)
}

// Configuration 实验或智能体配置错误
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// NotFound 资源不存在
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict 资源冲突
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Unauthorized 未认证
func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

// Forbidden 无权限或实验未开放
func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// KindOf 返回错误链上第一个业务错误的类别
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message 返回面向调用方的错误信息
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
