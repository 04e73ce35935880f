package monitoring

import (
	"fmt"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("frame %d", 7)
	if len(*lines) != 1 || (*lines)[0] != "frame 7" {
		t.Fatalf("custom logger got %q", *lines)
	}

	SetLogger(nil)
	// The no-op logger must not panic and must not reach the old callback.
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger still forwarded: %q", *lines)
	}
}

func TestDebugf(t *testing.T) {
	lines := captureLogs(t)
	t.Cleanup(func() { SetDebug(false) })

	SetDebug(false)
	Debugf("hidden %s", "detail")
	if len(*lines) != 0 {
		t.Fatalf("Debugf emitted while disabled: %q", *lines)
	}

	SetDebug(true)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebug(true)")
	}
	Debugf("shown %s", "detail")
	if len(*lines) != 1 || (*lines)[0] != "[debug] shown detail" {
		t.Errorf("Debugf output = %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
