package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and is reserved for wire
// payloads: full chat-completions request/response bodies and MQTT
// publishes. -8 is the customary slot for trace in slog extensions.
// Debug already logs one line per API call; trace is for reproducing
// provider bugs from the exact bytes exchanged.
const LevelTrace = slog.Level(-8)

// ParseLogLevel maps the config file's log_level string to a level.
// Recognized values, case-insensitively and ignoring surrounding
// whitespace: trace, debug, info (also the empty default), warn,
// warning, error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames is a ReplaceAttr hook for handler construction
// that labels [LevelTrace] records "TRACE". slog knows nothing about
// custom levels and would otherwise print them as "DEBUG-4".
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
