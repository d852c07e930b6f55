package swudlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: LevelWarning, out: &buf}

	l.Info(Fetch, "should not appear")
	l.Warning(Fetch, "should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("Info line leaked through LevelWarning filter: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("Warning line missing from output: %q", out)
	}
}

func TestLoggerDedupRepeat(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: LevelInfo, out: &buf}

	for i := 0; i < 3; i++ {
		l.Info(Stage, "same line")
	}
	l.Close()

	out := buf.String()
	if strings.Count(out, "same line") != 1 {
		t.Errorf("expected dedup to collapse repeated lines, got: %q", out)
	}
	if !strings.Contains(out, "repeated 2 times") {
		t.Errorf("expected repeat summary, got: %q", out)
	}
}

func TestLoggerDistinctTagsNotDeduped(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: LevelInfo, out: &buf}

	l.Info(Fetch, "line")
	l.Info(Stage, "line")

	if strings.Count(buf.String(), "line") != 2 {
		t.Errorf("lines with different tags should not be deduped: %q", buf.String())
	}
}
