package procutil

import (
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	out, err := Run("echo", "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
}

func TestRunWrapsStderrOnFailure(t *testing.T) {
	_, err := Run("sh", "-c", "echo boom >&2; exit 1")
	if err == nil {
		t.Fatal("expected error from non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected wrapped stderr in error, got: %v", err)
	}
}

func TestRunTimeoutExpires(t *testing.T) {
	_, err := RunTimeout(10*time.Millisecond, "sleep", "1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestLookPath(t *testing.T) {
	if !LookPath("sh") {
		t.Error("expected sh to be found on PATH")
	}
	if LookPath("definitely-not-a-real-command-xyz") {
		t.Error("expected missing command to not be found")
	}
}
