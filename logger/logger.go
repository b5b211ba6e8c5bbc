package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *slog.Logger
	once         sync.Once
)

type Config struct {
	// Level debug/info/warn/error
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	// Format text/json
	Format string `mapstructure:"format" json:"format" yaml:"format"`
	// Outputs stdout/stderr/file path
	Outputs    []string `mapstructure:"outputs" json:"outputs" yaml:"outputs"`
	MaxSizeMB  int      `mapstructure:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int      `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int      `mapstructure:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

func Init(cfg Config) error {
	once.Do(func() {
		globalLogger = New(cfg)
	})
	return nil
}

// New 根据配置创建 logger，文件输出按大小轮转
func New(cfg Config) *slog.Logger {
	var writers []io.Writer
	for _, output := range cfg.Outputs {
		switch output {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			writers = append(writers, &lumberjack.Logger{
				Filename:   output,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
			})
		}
	}

	// 如果没有指定输出，默认使用stdout
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return NewWithWriter(io.MultiWriter(writers...), cfg)
}

func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...interface{}) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger().Error(msg, args...)
}

// Logger 返回全局 logger，未初始化时返回 slog 默认 logger
func Logger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}
