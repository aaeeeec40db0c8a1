package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/okian/shortlist/pkg/logger"
)

// gormLogger routes gorm's log output to the structured logger.
type gormLogger struct {
	log   logger.Logger
	level glogger.LogLevel
	slow  time.Duration
}

// NewGormLogger adapts log for gorm. Queries slower than slow are logged as
// warnings; zero disables slow query reporting.
func NewGormLogger(log logger.Logger, slow time.Duration) glogger.Interface {
	return &gormLogger{log: log.Named("gorm"), level: glogger.Warn, slow: slow}
}

func (l *gormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Info {
		l.log.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Warn {
		l.log.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Error {
		l.log.Error(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= glogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= glogger.Error:
		sql, rows := fc()
		l.log.Error(ctx, "query failed",
			logger.Error(err),
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed))
	case l.slow > 0 && elapsed > l.slow && l.level >= glogger.Warn:
		sql, rows := fc()
		l.log.Warn(ctx, "slow query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed),
			logger.Duration("threshold", l.slow))
	case l.level >= glogger.Info:
		sql, rows := fc()
		l.log.Debug(ctx, "query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed))
	}
}
