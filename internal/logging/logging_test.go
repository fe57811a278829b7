package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/juju/loggo"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		debug, quiet bool
		want         loggo.Level
	}{
		{false, false, loggo.WARNING},
		{true, false, loggo.DEBUG},
		{false, true, loggo.ERROR},
		{true, true, loggo.DEBUG},
	}
	for _, tt := range tests {
		if got := Level(tt.debug, tt.quiet); got != tt.want {
			t.Errorf("Level(%v, %v) = %v, want %v", tt.debug, tt.quiet, got, tt.want)
		}
	}
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(&buf, loggo.WARNING); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer loggo.ResetLogging()

	logger := loggo.GetLogger("galaxy-admin.test")
	logger.Debugf("hidden")
	logger.Warningf("disk %s", "full")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug message should be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARNING: disk full") {
		t.Errorf("Expected warning line, got %q", out)
	}
}
