package logging

import (
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	globalMu     sync.RWMutex
)

func init() {
	// Default to a production logger until SetGlobal is called
	globalLogger, _ = zap.NewProduction()
}

// Config describes the log sinks.
type Config struct {
	Level string
	// Output is "stdout", "stderr" or "none".
	Output string
	// File receives every record when set.
	File string
	// ErrorFile receives error-level records only when set.
	ErrorFile string

	MaxSize    int // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	LocalTime  bool
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a JSON logger that tees records into the configured sinks.
// The returned closer releases rotating file handles and may be nil.
func New(cfg Config) (*zap.Logger, io.Closer, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	lvl := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var cores []zapcore.Core
	var files closers

	switch cfg.Output {
	case "none":
	case "stderr":
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl))
	default:
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl))
	}

	if cfg.File != "" {
		lj := cfg.rotator(cfg.File)
		files = append(files, lj)
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(lj), lvl))
	}

	if cfg.ErrorFile != "" {
		lj := cfg.rotator(cfg.ErrorFile)
		files = append(files, lj)
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(lj), zapcore.ErrorLevel))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil, nil
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1), // Skip one level to account for our wrapper functions
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
	if len(files) == 0 {
		return logger, nil, nil
	}
	return logger, files, nil
}

func (cfg Config) rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Global returns the global logger.
func Global() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetGlobal sets the global logger.
func SetGlobal(l *zap.Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Info logs at info level using the global logger.
func Info(msg string, fields ...zap.Field) {
	Global().Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(msg string, fields ...zap.Field) {
	Global().Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(msg string, fields ...zap.Field) {
	Global().Error(msg, fields...)
}

// Debug logs at debug level using the global logger.
func Debug(msg string, fields ...zap.Field) {
	Global().Debug(msg, fields...)
}

// Log writes at an explicit level using the global logger.
func Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	Global().Log(lvl, msg, fields...)
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return Global().With(fields...)
}

// StdLogger adapts the global logger for APIs that need a *log.Logger,
// such as http.Server.ErrorLog.
func StdLogger(component string) *log.Logger {
	l, err := zap.NewStdLogAt(Global().With(zap.String("component", component)), zapcore.ErrorLevel)
	if err != nil {
		return zap.NewStdLog(Global())
	}
	return l
}

// Sync flushes any buffered log entries.
func Sync() {
	Global().Sync()
}
