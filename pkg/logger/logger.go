package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of log messages.
type LogLevel int

// Log level constants defining message severity.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLogLevel converts a string log level to its LogLevel constant.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Options configures log output and rotation.
// An empty FilePath logs to stdout only.
type Options struct {
	FilePath   string
	Level      LogLevel
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Logger provides leveled logging with optional file rotation.
type Logger struct {
	loggers map[LogLevel]*log.Logger
	level   LogLevel
	mu      sync.RWMutex
}

var instance *Logger
var once sync.Once

// Init initializes the global logger instance. Later calls are ignored.
func Init(opts Options) {
	once.Do(func() {
		instance = New(opts)
	})
}

// New creates a logger writing to stdout and, when configured, a rotated file.
func New(opts Options) *Logger {
	var out io.Writer = os.Stdout
	if opts.FilePath != "" {
		dir := filepath.Dir(opts.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("cannot create log directory: %v", err)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
	}
	return NewWithWriter(out, opts.Level)
}

// NewWithWriter creates a logger writing to w. Used by tests to capture output.
func NewWithWriter(w io.Writer, level LogLevel) *Logger {
	flags := log.LstdFlags | log.Lshortfile
	l := &Logger{level: level, loggers: make(map[LogLevel]*log.Logger, len(levelNames))}
	for lvl, name := range levelNames {
		l.loggers[lvl] = log.New(w, "["+name+"] ", flags)
	}
	return l
}

// SetLevel changes the minimum log level for filtering messages.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum log level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) shouldLog(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) output(level LogLevel, depth int, msg string) {
	if !l.shouldLog(level) {
		return
	}
	l.loggers[level].Output(depth+1, msg)
	if level == FATAL {
		os.Exit(1)
	}
}

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(DEBUG, 2, fmt.Sprintf(format, v...))
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.output(INFO, 2, fmt.Sprintf(format, v...))
}

// Warnf logs a formatted warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(WARN, 2, fmt.Sprintf(format, v...))
}

// Errorf logs a formatted error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(ERROR, 2, fmt.Sprintf(format, v...))
}

// Fatalf logs a formatted fatal-level message and exits the program.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.output(FATAL, 2, fmt.Sprintf(format, v...))
}

// Fields are key/value pairs attached to every message of an Entry.
type Fields map[string]interface{}

// Entry is a logger bound to a fixed set of fields.
type Entry struct {
	logger *Logger
	prefix string
}

// With returns an Entry that prefixes each message with the given fields,
// sorted by key so output is stable.
func (l *Logger) With(fields Fields) *Entry {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v ", k, fields[k])
	}
	return &Entry{logger: l, prefix: b.String()}
}

func (e *Entry) log(level LogLevel, format string, v ...interface{}) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.output(level, 3, e.prefix+fmt.Sprintf(format, v...))
}

// Debugf logs a formatted debug-level message with the entry fields.
func (e *Entry) Debugf(format string, v ...interface{}) { e.log(DEBUG, format, v...) }

// Infof logs a formatted info-level message with the entry fields.
func (e *Entry) Infof(format string, v ...interface{}) { e.log(INFO, format, v...) }

// Warnf logs a formatted warning-level message with the entry fields.
func (e *Entry) Warnf(format string, v ...interface{}) { e.log(WARN, format, v...) }

// Errorf logs a formatted error-level message with the entry fields.
func (e *Entry) Errorf(format string, v ...interface{}) { e.log(ERROR, format, v...) }

// Global convenience functions. They are no-ops until Init is called.

// Debugf logs a formatted debug-level message using the global logger instance.
func Debugf(format string, v ...interface{}) {
	if instance != nil {
		instance.output(DEBUG, 2, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info-level message using the global logger instance.
func Infof(format string, v ...interface{}) {
	if instance != nil {
		instance.output(INFO, 2, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning-level message using the global logger instance.
func Warnf(format string, v ...interface{}) {
	if instance != nil {
		instance.output(WARN, 2, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error-level message using the global logger instance.
func Errorf(format string, v ...interface{}) {
	if instance != nil {
		instance.output(ERROR, 2, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal-level message and exits the program using the global logger instance.
func Fatalf(format string, v ...interface{}) {
	if instance != nil {
		instance.output(FATAL, 2, fmt.Sprintf(format, v...))
		return
	}
	log.Fatalf(format, v...)
}

// With returns an Entry bound to the global logger. Safe to use before Init.
func With(fields Fields) *Entry {
	if instance == nil {
		return &Entry{}
	}
	return instance.With(fields)
}

// Printf adapts the global logger to printf-style consumers (e.g. cron).
type Printf struct{}

// Printf logs at info level.
func (Printf) Printf(format string, v ...interface{}) {
	Infof(format, v...)
}

// SetLevel changes the minimum log level for the global logger instance.
func SetLevel(level LogLevel) {
	if instance != nil {
		instance.SetLevel(level)
	}
}

// GetLevel returns the current minimum log level of the global logger instance.
func GetLevel() LogLevel {
	if instance != nil {
		return instance.GetLevel()
	}
	return INFO
}
