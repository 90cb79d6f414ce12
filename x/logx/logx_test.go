package logx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestComponentAttributeAndLevel(t *testing.T) {
	var buf bytes.Buffer
	old := Level()
	SetLogger(New(&buf))
	t.Cleanup(func() { SetLogger(nil); SetLevel(old) })

	SetLevel(slog.LevelInfo)
	Debug(ComponentSoftUART, "hidden")
	Info(ComponentSoftUART, "opened", "index", 0)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "component=softuart") || !strings.Contains(out, "index=0") {
		t.Fatalf("missing attributes: %q", out)
	}

	buf.Reset()
	SetLevel(slog.LevelDebug)
	Debug(ComponentConfig, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
