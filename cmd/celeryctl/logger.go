package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the celeryctl logger. Logs go to stderr so command output
// on stdout stays machine readable, or to a rotated file when LogFile is set.
func newLogger(cfg *Config) *zap.Logger {
	level := zap.InfoLevel
	if cfg.Verbose {
		level = zap.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.LogFormat == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	ws := zapcore.Lock(os.Stderr)
	if cfg.LogFile != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		})
	}

	return zap.New(zapcore.NewCore(encoder, ws, level), zap.AddCaller())
}
