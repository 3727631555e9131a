package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	sentinel := New(KindNotFound, "房间不存在")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"哨兵错误", sentinel, KindNotFound},
		{"fmt 包装", fmt.Errorf("查询失败: %w", sentinel), KindNotFound},
		{"普通错误", stderrors.New("boom"), KindInternal},
		{"Internal 包装", Internal(stderrors.New("db down")), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("期望 %s，实际 %s", tt.want, got)
			}
		})
	}
}

func TestMessageOf_HidesInternal(t *testing.T) {
	err := Internal(stderrors.New("pq: relation \"rooms\" does not exist"))
	if msg := MessageOf(err); msg != "服务器内部错误" {
		t.Errorf("内部错误不应泄露细节，实际=%s", msg)
	}

	if msg := MessageOf(New(KindValidation, "房间名称不能为空")); msg != "房间名称不能为空" {
		t.Errorf("期望原样返回业务消息，实际=%s", msg)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(KindInternal, "提交事务失败", cause)

	if !stderrors.Is(err, cause) {
		t.Error("Wrap 后应能通过 errors.Is 找到底层错误")
	}
	if err.Error() != "internal: 提交事务失败: connection reset" {
		t.Errorf("Format 输出不符合预期: %s", err.Error())
	}
}

func TestKind_String(t *testing.T) {
	if KindConflict.String() != "conflict" {
		t.Errorf("期望 conflict，实际 %s", KindConflict.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("未知类别格式错误: %s", Kind(99).String())
	}
}
