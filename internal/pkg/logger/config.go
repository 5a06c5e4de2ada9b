package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// 输出目标
const (
	OutputConsole = "console" // stdout
	OutputStderr  = "stderr"
	OutputFile    = "file"
	OutputBoth    = "both" // stdout + file
)

type Config struct {
	Level            string     `mapstructure:"level"`
	Format           string     `mapstructure:"format"` // json | console
	Output           string     `mapstructure:"output"`
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enable_caller"`
	EnableStacktrace bool       `mapstructure:"enable_stacktrace"` // error 及以上附带堆栈
}

// FileConfig lumberjack 滚动参数
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxAge     int    `mapstructure:"max_age"`  // 天
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           OutputConsole,
		EnableCaller:     true,
		EnableStacktrace: true,
		File: FileConfig{
			Filename:   "logs/agent-chat.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Level)
	}

	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format %q, must be 'json' or 'console'", c.Format)
	}

	switch c.Output {
	case OutputConsole, OutputStderr:
		return nil
	case OutputFile, OutputBoth:
		return c.File.validate()
	default:
		return fmt.Errorf("invalid log output %q, must be console, stderr, file or both", c.Output)
	}
}

func (f FileConfig) validate() error {
	switch {
	case f.Filename == "":
		return fmt.Errorf("log.file.filename is required for file output")
	case f.MaxSize <= 0:
		return fmt.Errorf("log.file.max_size must be positive")
	case f.MaxAge <= 0:
		return fmt.Errorf("log.file.max_age must be positive")
	case f.MaxBackups < 0:
		return fmt.Errorf("log.file.max_backups must not be negative")
	}
	return nil
}
