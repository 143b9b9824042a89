package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"  debug  ", zerolog.DebugLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLogLevel(tc.input); got != tc.want {
			t.Errorf("Expected level %v for %q, got %v", tc.want, tc.input, got)
		}
	}
}

func TestInitWithOptionsFile(t *testing.T) {
	logFile := t.TempDir() + "/test.log"
	l, err := InitWithOptions(logFile, false)
	if err != nil {
		t.Fatalf("InitWithOptions failed: %v", err)
	}
	l.Info().Msg("test entry")
}

func TestWithComponent(t *testing.T) {
	// Just make sure the helper is usable before Init.
	l := WithComponent("test")
	l.Info().Msg("should not panic")
}
