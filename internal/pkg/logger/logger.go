// Package logger 基于 zap 的日志，文件输出用 lumberjack 滚动。
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 在 zap.Logger 之外保留构建它的配置
type Logger struct {
	*zap.Logger
	config *Config
}

// New cfg 为 nil 时使用 DefaultConfig
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger configuration: %w", err)
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	sink, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder(cfg.Format), sink, level)
	return &Logger{Logger: zap.New(core, opts...), config: cfg}, nil
}

// CLI 命令行工具用：console 格式写 stderr，stdout 留给对话内容
func CLI(level string) (*Logger, error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.Format = "console"
	cfg.Output = OutputStderr
	cfg.EnableCaller = false
	cfg.EnableStacktrace = false
	return New(cfg)
}

// NewNop 丢弃所有日志
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: DefaultConfig()}
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func openSink(cfg *Config) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case OutputStderr:
		return zapcore.Lock(os.Stderr), nil
	case OutputFile:
		return rotating(cfg.File)
	case OutputBoth:
		file, err := rotating(cfg.File)
		if err != nil {
			return nil, err
		}
		return zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stdout), file), nil
	default:
		return zapcore.Lock(os.Stdout), nil
	}
}

func rotating(fc FileConfig) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(fc.Filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    fc.MaxSize,
		MaxAge:     fc.MaxAge,
		MaxBackups: fc.MaxBackups,
		Compress:   fc.Compress,
		LocalTime:  true,
	}), nil
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), config: l.config}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), config: l.config}
}

func (l *Logger) Config() *Config {
	return l.config
}

var global atomic.Pointer[Logger]

// SetGlobal 替换全局 logger，nil 忽略
func SetGlobal(l *Logger) {
	if l != nil {
		global.Store(l)
	}
}

// L 全局 logger；未设置时按默认配置创建一个
func L() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	l, err := New(DefaultConfig())
	if err != nil {
		l = NewNop()
	}
	global.CompareAndSwap(nil, l)
	return global.Load()
}

func Sync() error {
	return L().Sync()
}
