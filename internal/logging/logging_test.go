package logging

import (
	"testing"
)

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		name  string
		debug string
		level string
		want  LogLevel
	}{
		{"default", "", "", LevelInfo},
		{"explicit debug", "", "debug", LevelDebug},
		{"explicit warn", "", "warn", LevelWarn},
		{"warning alias", "", "warning", LevelWarn},
		{"explicit error", "", "error", LevelError},
		{"case insensitive", "", "DEBUG", LevelDebug},
		{"unrecognized falls back", "", "verbose", LevelInfo},
		{"DEBUG=1 wins", "1", "error", LevelDebug},
		{"DEBUG=true wins", "true", "", LevelDebug},
		{"DEBUG=off is ignored", "off", "warn", LevelWarn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DEBUG", tc.debug)
			t.Setenv("LOG_LEVEL", tc.level)
			if got := levelFromEnv(); got != tc.want {
				t.Errorf("levelFromEnv() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(LevelDebug < LevelInfo && LevelInfo < LevelWarn && LevelWarn < LevelError) {
		t.Error("levels must be strictly ascending for threshold comparisons")
	}
}

func TestLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		LevelDebug:   "debug",
		LevelInfo:    "info",
		LevelWarn:    "warn",
		LevelError:   "error",
		LogLevel(99): "unknown(99)",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestIsDebugEnabledMatchesLevel(t *testing.T) {
	if IsDebugEnabled() != (GetLevel() <= LevelDebug) {
		t.Error("IsDebugEnabled disagrees with GetLevel")
	}
}

func TestEmittersDoNotPanic(t *testing.T) {
	Debug("debug %s %d", "message", 1)
	Info("info %s %d", "message", 2)
	Warn("warn %s %d", "message", 3)
	Error("error %s %d", "message", 4)
}
