package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
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

// Logger is a levelled printf-style logger backed by zap.
type Logger struct {
	level *zap.AtomicLevel
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

type Config struct {
	Level  LogLevel
	JSON   bool
	Output io.Writer

	// File enables rotated file output next to Output when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		JSON:       false,
		Output:     os.Stdout,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Output), level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			rotated := zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			})
			fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), rotated, level)
			core = zapcore.NewTee(core, fileCore)
		}
	}

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{
		level: &level,
		sugar: base.Sugar(),
		base:  base,
	}
}

// Nop returns a logger that discards everything, used by tests.
func Nop() *Logger {
	level := zap.NewAtomicLevelAt(zapcore.FatalLevel)
	base := zap.NewNop()
	return &Logger{level: &level, sugar: base.Sugar(), base: base}
}

func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
			cfg.Level = ParseLevel(envLevel)
		}
		if file := os.Getenv("LOG_FILE"); file != "" {
			cfg.File = file
		}
		cfg.JSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")
		defaultLogger = New(cfg)
	})
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// SetDefault replaces the logger returned by GetLogger.
func SetDefault(l *Logger) {
	GetLogger()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Named returns a child logger tagged with the component name.
func (l *Logger) Named(name string) *Logger {
	base := l.base.Named(name)
	return &Logger{level: l.level, sugar: base.Sugar(), base: base}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

func (l *Logger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.sugar.Fatalf(format, args...)
}

// Package-level convenience functions using the default logger

func Debugf(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	GetLogger().Fatalf(format, args...)
}

func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}
