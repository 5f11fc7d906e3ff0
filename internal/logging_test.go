package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	l := NewLogger("test")
	var out bytes.Buffer
	l.logger.Out = &out

	l.Info("hidden")
	if out.Len() != 0 {
		t.Error("info shown at the default level:", out.String())
	}
	l.Warn("shown")
	if !strings.Contains(out.String(), "shown") || !strings.Contains(out.String(), "component=test") {
		t.Error("warning:", out.String())
	}

	if old := l.SetLogLevelInt(3); old != int(LogLevelDefault) {
		t.Error("old level", old)
	}
	out.Reset()
	l.Infof("cell %d", 7)
	if !strings.Contains(out.String(), "cell 7") {
		t.Error("info:", out.String())
	}
	if old := l.SetLogLevelInt(1); old != int(LevelInfo) {
		t.Error("old level", old)
	}
	out.Reset()
	l.Warn("quiet")
	l.Error("loud")
	if strings.Contains(out.String(), "quiet") || !strings.Contains(out.String(), "loud") {
		t.Error("error level:", out.String())
	}
}
