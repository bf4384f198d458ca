package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerConfig struct {
	Debug bool

	// LogFile, when set, tees log output to a size-rotated file in addition to stderr
	LogFile string

	// MaxSizeMB is the rotation threshold for LogFile. Defaults to 100.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept. Defaults to 5.
	MaxBackups int
}

func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "timestamp"

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stderr), level),
	}

	if cfg.LogFile != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("no log outputs configured")
	}

	options = append(options, zap.AddCaller())
	return zap.New(zapcore.NewTee(cores...), options...), nil
}
