package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogFile    = "./logs/syncgate.log"
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 7
)

// Config describes where a Logger writes and how the file is rotated.
type Config struct {
	File       string `ini:"file"`
	MaxSizeMB  int    `ini:"max_size_mb"`
	MaxAgeDays int    `ini:"max_age_days"`
	Stdout     bool   `ini:"stdout"`
	Debug      bool   `ini:"debug"`
}

// Logger is a category-first leveled logger. It is built once at process
// start and handed to every component that logs.
type Logger struct {
	out   *log.Logger
	debug bool
}

// New builds a Logger writing to a rotated file, and to stdout as well when
// cfg.Stdout is set.
func New(cfg Config) *Logger {
	if cfg.File == "" {
		cfg.File = defaultLogFile
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultMaxSizeMB
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = defaultMaxAgeDays
	}
	_ = os.MkdirAll(filepath.Dir(cfg.File), 0755)

	var w io.Writer = &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  cfg.MaxSizeMB,  // megabytes
		MaxAge:   cfg.MaxAgeDays, // days
	}
	if cfg.Stdout {
		w = io.MultiWriter(w, os.Stdout)
	}
	return NewWriter(w, cfg.Debug)
}

// NewWriter builds a Logger on top of an arbitrary writer.
func NewWriter(w io.Writer, debug bool) *Logger {
	return &Logger{
		out:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		debug: debug,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, false)
}

func (l *Logger) write(color, level, category string, content []interface{}) {
	if l == nil {
		return
	}
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, level, category, ColorReset)
	l.out.Printf("%s: %s", coloredCategory, message)
}

func (l *Logger) Info(category string, content ...interface{}) {
	l.write(ColorGreen, "INFO", category, content)
}

func (l *Logger) Error(category string, content ...interface{}) {
	l.write(ColorRed, "ERROR", category, content)
}

func (l *Logger) Warn(category string, content ...interface{}) {
	l.write(ColorYellow, "WARN", category, content)
}

func (l *Logger) Debug(category string, content ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.write(ColorBlue, "DEBUG", category, content)
}

// Errorf logs an error message and returns a formatted error
func (l *Logger) Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	l.Error("ERROR", err.Error())
	return err
}

var std atomic.Pointer[Logger]

func init() {
	std.Store(NewWriter(os.Stderr, false))
}

// SetDefault replaces the logger used by the package-level helpers.
func SetDefault(l *Logger) {
	if l != nil {
		std.Store(l)
	}
}

// Default returns the logger used by the package-level helpers.
func Default() *Logger {
	return std.Load()
}

func Info(category string, content ...interface{}) {
	Default().Info(category, content...)
}

func Error(category string, content ...interface{}) {
	Default().Error(category, content...)
}

func Warn(category string, content ...interface{}) {
	Default().Warn(category, content...)
}

func Debug(category string, content ...interface{}) {
	Default().Debug(category, content...)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	return Default().Errorf(format, args...)
}
