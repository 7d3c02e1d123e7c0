package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) tag() string {
	switch l {
	case DebugLevel:
		return "[DEBUG] "
	case InfoLevel:
		return "[INFO] "
	case WarnLevel:
		return "[WARN] "
	default:
		return "[ERROR] "
	}
}

var (
	mu           sync.RWMutex
	currentLevel = InfoLevel
	output       io.Writer = os.Stderr
)

// Logger interface for logging
type Logger interface {
	Printf(format string, v ...interface{})
	Print(v ...interface{})
	Println(v ...interface{})
}

var (
	Debug = New(DebugLevel, "")
	Info  = New(InfoLevel, "")
	Warn  = New(WarnLevel, "")
	Error = New(ErrorLevel, "")
)

type logger struct {
	prefix string
	level  Level
	l      *stdlog.Logger
}

// New returns a logger writing at the given level. The prefix is put in front of every message.
func New(level Level, prefix string) *logger {
	mu.RLock()
	w := output
	mu.RUnlock()
	return &logger{
		prefix: prefix,
		level:  level,
		l:      stdlog.New(w, level.tag(), stdlog.LstdFlags|stdlog.Lshortfile),
	}
}

// SetLevel sets the minimum level written by every logger: debug, info, warn or error.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = DebugLevel
	case "info":
		currentLevel = InfoLevel
	case "warn", "warning":
		currentLevel = WarnLevel
	case "error":
		currentLevel = ErrorLevel
	}
}

// SetOutput redirects the package loggers, used by tests to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	for _, l := range []*logger{Debug, Info, Warn, Error} {
		l.l.SetOutput(w)
	}
}

// NewStdLogger returns a *log.Logger for libraries such as sarama, writing at level with prefix
// and without caller file names.
func NewStdLogger(level Level, prefix string) *stdlog.Logger {
	return stdlog.New(levelWriter(level), level.tag()+prefix, stdlog.LstdFlags)
}

// levelWriter writes to the current output when its level is enabled.
type levelWriter Level

func (w levelWriter) Write(p []byte) (int, error) {
	mu.RLock()
	defer mu.RUnlock()
	if Level(w) < currentLevel {
		return len(p), nil
	}
	return output.Write(p)
}

func (l *logger) shouldLog() bool {
	mu.RLock()
	defer mu.RUnlock()
	return l.level >= currentLevel
}

func (l *logger) Printf(format string, v ...interface{}) {
	if !l.shouldLog() {
		return
	}
	l.l.Output(2, l.prefix+fmt.Sprintf(format, v...))
}

func (l *logger) Print(v ...interface{}) {
	if !l.shouldLog() {
		return
	}
	l.l.Output(2, l.prefix+fmt.Sprint(v...))
}

func (l *logger) Println(v ...interface{}) {
	if !l.shouldLog() {
		return
	}
	l.l.Output(2, l.prefix+fmt.Sprintln(v...))
}

var _ Logger = (*logger)(nil)

// Enabled reports whether messages at level are written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}
