package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slowQueryThreshold is the duration above which gorm reports a statement.
const slowQueryThreshold = 200 * time.Millisecond

// slogWriter adapts a *slog.Logger to gorm's logger.Writer.
type slogWriter struct {
	log   *slog.Logger
	level slog.Level
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Log(context.Background(), w.level, fmt.Sprintf(format, args...), "component", "gorm")
}

// newGormLogger routes gorm output through slog. Missing rows are an
// expected outcome of every lookup, so they are not logged.
func newGormLogger(cfg Config) logger.Interface {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}

	level := logger.Warn
	slogLevel := slog.LevelWarn
	if cfg.LogSQL {
		level = logger.Info
		slogLevel = slog.LevelInfo
	}

	return logger.New(slogWriter{log: l, level: slogLevel}, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
