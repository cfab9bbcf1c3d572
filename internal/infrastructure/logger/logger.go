package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string // ISO8601, RFC3339, or custom format
}

// DefaultConfig returns the console configuration used for operator runs
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// RunConfig configures a run logger: console for the operator, a daily file for the record
type RunConfig struct {
	Console *Config
	// Dir holds the daily log files; empty disables the file core
	Dir string
	// FileLevel is the minimum level written to the file, debug by default
	FileLevel string
	// Now is used to name the daily file; time.Now when nil
	Now func() time.Time
}

// DailyFileName returns the log file name for the given day
func DailyFileName(t time.Time) string {
	return fmt.Sprintf("qpss-%s.log", t.Format("2006-01-02"))
}

// NewRunLogger tees a console core and an append-only daily file core.
// The returned cleanup flushes and closes the file.
func NewRunLogger(cfg RunConfig) (*zap.Logger, func(), error) {
	console := cfg.Console
	if console == nil {
		console = DefaultConfig()
	}
	cores := []zapcore.Core{
		zapcore.NewCore(createEncoder(console), createWriter(console.Output), parseLevel(console.Level)),
	}

	var file *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		now := time.Now
		if cfg.Now != nil {
			now = cfg.Now
		}
		path := filepath.Join(cfg.Dir, DailyFileName(now()))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f

		fileLevel := cfg.FileLevel
		if fileLevel == "" {
			fileLevel = "debug"
		}
		fileCfg := &Config{Format: "text", TimeFormat: "2006-01-02 15:04:05"}
		cores = append(cores, zapcore.NewCore(createEncoder(fileCfg), zapcore.AddSync(f), parseLevel(fileLevel)))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// parseLevel converts a string level to zapcore.Level
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// createEncoder creates the appropriate encoder based on format.
// "console" is colored for terminals, "text" is the plain console layout for files.
func createEncoder(cfg *Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(cfg.TimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch cfg.Format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.CallerKey = zapcore.OmitKey
		return zapcore.NewConsoleEncoder(encoderConfig)
	case "text":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	return zapcore.NewJSONEncoder(encoderConfig)
}

// createWriter creates the appropriate writer based on output
func createWriter(output string) zapcore.WriteSyncer {
	switch strings.ToLower(output) {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			// Fallback to stdout if file cannot be opened
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(file)
	}
}
