package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l.Debugf("隐藏 %d", 1)
	l.Infof("刷新会话 op=%s", "posts")
	l.Errorf("失败: %v", "boom")

	out := buf.String()
	if strings.Contains(out, "隐藏") {
		t.Fatalf("debug 日志不应输出: %s", out)
	}
	if !strings.Contains(out, "刷新会话 op=posts") || !strings.Contains(out, "失败: boom") {
		t.Fatalf("日志内容缺失: %s", out)
	}
}

func TestTintWritesColoredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(NewTint(&buf, slog.LevelDebug))
	l.Warnf("注意 %s", "x")
	if !strings.Contains(buf.String(), "注意 x") {
		t.Fatalf("tint 输出缺失: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Fatalf("debug 解析错误")
	}
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("WARN 解析错误")
	}
	if ParseLevel("nope") != slog.LevelInfo {
		t.Fatalf("未知级别应回落 info")
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatalf("nil 应替换为 Nop")
	}
}
