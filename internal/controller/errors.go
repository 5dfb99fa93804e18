package controller

import (
	"errors"
	"fmt"
)

// 定义基础错误类型，配合 errors.Is 使用
var (
	ErrValidation = errors.New("本地校验失败")
	ErrRemote     = errors.New("筛选服务返回错误")
	ErrTransport  = errors.New("请求筛选服务失败")

	// ErrOperationPending 同类操作仍在进行中，本次调用被忽略
	ErrOperationPending = errors.New("operation already pending")
)

// ValidationReason 校验失败原因
type ValidationReason string

const (
	ReasonInvalidType      ValidationReason = "invalid_type"
	ReasonTooLarge         ValidationReason = "too_large"
	ReasonNoSelection      ValidationReason = "no_selection"
	ReasonEmptyDescription ValidationReason = "empty_description"
	ReasonUnreadable       ValidationReason = "unreadable"
)

// ValidationError 本地校验错误，不会发出网络请求
type ValidationError struct {
	Reason  ValidationReason
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteError 后端返回了 error 字段，Message 原样展示给用户
type RemoteError struct {
	Op         string
	Message    string
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (操作:%s, 状态码:%d): %s", ErrRemote, e.Op, e.StatusCode, e.Message)
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// TransportError 网络失败或无法解析的响应，原因只写日志，不展示给用户
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (操作:%s): %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func newValidationError(reason ValidationReason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}
