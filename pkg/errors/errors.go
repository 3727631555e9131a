package errors

import (
	"errors"
	"fmt"
)

// Kind 业务错误类别，由边界层映射为 HTTP 状态码
type Kind int

const (
	KindInternal        Kind = iota // 未预期错误 / 存储失败
	KindValidation                  // 参数缺失或非法
	KindUnauthenticated             // 凭证错误
	KindAuthorization               // 已认证但无权操作
	KindNotFound                    // 引用的实体不存在或已软删除
	KindConflict                    // 唯一字段重复
)

var kindNames = [...]string{
	KindInternal:        "internal",
	KindValidation:      "validation",
	KindUnauthenticated: "unauthenticated",
	KindAuthorization:   "authorization",
	KindNotFound:        "not_found",
	KindConflict:        "conflict",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New 创建业务错误（通常用于声明包级哨兵错误）
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 将底层错误包装为指定类别
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal 将存储层等未预期错误包装为 KindInternal
func Internal(err error) *Error {
	return Wrap(KindInternal, "服务器内部错误", err)
}

func (e *Error) Error() string {
	return Format(e)
}

func (e *Error) Unwrap() error { return e.Err }

// Format 输出 "kind: message: cause" 形式的错误文本
func Format(e *Error) string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf 返回错误链中第一个 *Error 的类别；非业务错误视为 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 返回可直接暴露给调用方的消息；内部错误统一为通用文案
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "服务器内部错误"
}
