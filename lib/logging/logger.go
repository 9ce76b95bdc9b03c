// Package logging provides leveled logging utilities for the application
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ParseLevel converts a level name (debug, info, warn, error) to a LogLevel.
// Unknown names default to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// --------------------------------------------------------------------------
// Logger Interface
// --------------------------------------------------------------------------

// ILogger is the interface for all component loggers
type ILogger interface {
	SetLevel(level LogLevel)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Panicf(format string, args ...interface{})
}

// --------------------------------------------------------------------------
// Logger Registry
// --------------------------------------------------------------------------

var (
	registryMu sync.Mutex
	registry   = map[string]*loggerImpl{}
)

// GetLogger returns the named logger, creating it on first request.
// Loggers are shared: two calls with the same name return the same instance.
func GetLogger(name string) ILogger {
	registryMu.Lock()
	defer registryMu.Unlock()

	if l, ok := registry[name]; ok {
		return l
	}

	l := &loggerImpl{
		name:   name,
		level:  INFO,
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
	registry[name] = l
	return l
}

// SetGlobalLevel sets the level of all currently registered loggers.
func SetGlobalLevel(level LogLevel) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, l := range registry {
		l.SetLevel(level)
	}
}

// --------------------------------------------------------------------------
// Logger Implementation
// --------------------------------------------------------------------------

// loggerImpl implements the ILogger interface with custom formatting
type loggerImpl struct {
	name   string
	level  LogLevel
	logger *log.Logger
}

func (l *loggerImpl) SetLevel(level LogLevel) {
	l.level = level
}

func (l *loggerImpl) Debugf(format string, args ...interface{}) {
	if l.level >= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *loggerImpl) Infof(format string, args ...interface{}) {
	if l.level >= INFO {
		l.log("INFO", format, args...)
	}
}

func (l *loggerImpl) Warningf(format string, args ...interface{}) {
	if l.level >= WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *loggerImpl) Errorf(format string, args ...interface{}) {
	if l.level >= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *loggerImpl) Panicf(format string, args ...interface{}) {
	if l.level >= CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *loggerImpl) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}
