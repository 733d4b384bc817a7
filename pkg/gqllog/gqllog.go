// Package gqllog provides the level-gated logger used across GraphLite's
// core.
//
// Like the teacher's apoc/log package, this wraps the standard library log
// package rather than a structured-logging library: a package-level level
// gate plus a component tag is all the core needs, and nothing else in the
// pack's nornicdb teacher reaches for zap/logrus either.
package gqllog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a logging severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	currentLevel atomic.Int32
	backend      = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLevel changes the global minimum level that is actually written.
func SetLevel(l Level) { currentLevel.Store(int32(l)) }

// Logger tags every message it emits with a component name (e.g.
// "executor", "session", "storage").
type Logger struct {
	component string
}

// New returns a Logger tagged with component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (lg *Logger) log(level Level, format string, args ...any) {
	if Level(currentLevel.Load()) > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	backend.Printf("[%s] %-5s %s", lg.component, level, msg)
}

func (lg *Logger) Debug(format string, args ...any) { lg.log(LevelDebug, format, args...) }
func (lg *Logger) Info(format string, args ...any)  { lg.log(LevelInfo, format, args...) }
func (lg *Logger) Warn(format string, args ...any)  { lg.log(LevelWarn, format, args...) }
func (lg *Logger) Error(format string, args ...any) { lg.log(LevelError, format, args...) }

// Query logs one query: at Warn when err is non-nil, otherwise at Debug.
// The coordinator calls it for every query whose plan it has opened.
func (lg *Logger) Query(query string, planKey string, cacheHit bool, err error) {
	if err != nil {
		lg.Warn("query failed plan=%s cache_hit=%v query=%q err=%v", planKey, cacheHit, query, err)
		return
	}
	lg.Debug("query ok plan=%s cache_hit=%v query=%q", planKey, cacheHit, query)
}
