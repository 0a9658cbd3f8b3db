// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// Mailroom writes lifecycle, request, and error events to one JSON log per
// day under `<log.dir>/YYYY-MM-DD.log`.  When `log.console` is set, or the
// process runs in an interactive TTY, the same events are teed to stdout in
// console format.  Rotation, compression, and retention are handled by
// Lumberjack.
//
// Usage
// -----
//
//	log, err := logger.New(cfg.Log, runningInTTY())
//	if err != nil { … }
//	log.Info("listener bound", zap.String("addr", addr))
//
// Notes
// -----
// • Zap core uses ISO-8601 timestamps and lowercase levels.
// • New does not install the logger globally; cmd/web decides that.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanizio/mailroom/internal/config"
)

// New returns a *zap.Logger that writes JSON to <dir>/YYYY-MM-DD.log.  When
// tee is true, or cfg.Console is set, a console core is also attached.
func New(cfg config.LogSettings, tee bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, time.Now().Format("2006-01-02")+".log"),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(fileSink), level),
	}
	if tee || cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig()),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	)
	z.Info("logger online", zap.Bool("tee", tee || cfg.Console), zap.String("level", level.String()))
	return z, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}
