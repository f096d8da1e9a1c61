package cmd

import (
	"fmt"
	"log/slog"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l *LogLevel) String() string {
	return string(*l)
}

func (l *LogLevel) Set(value string) error {
	switch LogLevel(value) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		*l = LogLevel(value)
		return nil
	default:
		return fmt.Errorf("invalid log level %q (debug, info, warn, error)", value)
	}
}

func (l *LogLevel) Type() string {
	return "level"
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
