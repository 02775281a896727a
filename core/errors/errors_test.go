package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCoreErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeSessionExpired, "会话过期")
	wrapped := Wrap(ErrCodeSessionExpired, "", stderrors.New("401"))

	if !stderrors.Is(wrapped, sentinel) {
		t.Fatalf("相同错误码应匹配 sentinel")
	}
	if stderrors.Is(New(ErrCodeRefreshFailed, "x"), sentinel) {
		t.Fatalf("不同错误码不应匹配")
	}
	if wrapped.Message != "401" {
		t.Fatalf("未提供 message 时应使用底层错误信息，实际 %q", wrapped.Message)
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	err := fmt.Errorf("feed: %w", Wrap(ErrCodeRefreshFailed, "刷新失败", stderrors.New("boom")))
	if got := CodeOf(err); got != ErrCodeRefreshFailed {
		t.Fatalf("期望 %s，实际 %s", ErrCodeRefreshFailed, got)
	}
	if got := CodeOf(stderrors.New("plain")); got != ErrCodeUnknown {
		t.Fatalf("普通错误应返回 UNKNOWN，实际 %s", got)
	}
	if got := CodeOf(nil); got != ErrCodeUnknown {
		t.Fatalf("nil 应返回 UNKNOWN，实际 %s", got)
	}
}

func TestCoreErrorMessageFallbacks(t *testing.T) {
	cases := []struct {
		err  *CoreError
		want string
	}{
		{New(ErrCodeNotFound, "缺失"), "core: [NOT_FOUND] 缺失"},
		{&CoreError{Message: "仅消息"}, "仅消息"},
		{&CoreError{Code: ErrCodeInvalidState}, "core: 错误码=INVALID_STATE"},
		{&CoreError{Raw: stderrors.New("raw")}, "raw"},
		{&CoreError{}, "core: 未知错误"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Fatalf("期望 %q，实际 %q", c.want, got)
		}
	}
}
