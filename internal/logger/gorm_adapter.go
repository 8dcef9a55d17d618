package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM output into a module logger. Statements are
// logged at trace, so they appear only with module_levels datastore: trace.
// Failed and slow statements are warnings.
type GormLoggerAdapter struct {
	log  Logger
	slow time.Duration // 0 disables slow statement warnings
}

// NewGormLoggerAdapter returns an adapter writing to log, or to the
// datastore module logger when log is nil.
func NewGormLoggerAdapter(log Logger, slow time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = Global().Module("datastore")
	}
	return &GormLoggerAdapter{log: log, slow: slow}
}

// LogMode is ignored; levels come from the logging configuration
func (a *GormLoggerAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

func (a *GormLoggerAdapter) Info(_ context.Context, format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, format string, args ...any) {
	a.log.Warn(fmt.Sprintf(format, args...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, format string, args ...any) {
	a.log.Error(fmt.Sprintf(format, args...))
}

// Trace is called by GORM after every statement. Record-not-found is an
// expected lookup outcome and is not reported as a failure.
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, statement func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := statement()
	fields := []Field{String("sql", sql), Int64("rows", rows), Duration("elapsed", elapsed)}
	log := a.log.WithContext(ctx)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("query error", append(fields, Error(err))...)
		return
	}
	if a.slow > 0 && elapsed > a.slow {
		log.Warn("slow query", fields...)
		return
	}
	log.Trace("sql query", fields...)
}
