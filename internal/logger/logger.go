// Package logger builds the zap loggers used by the server and the client.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger holds the process-wide *zap.Logger. Log is a no-op logger until
// Init succeeds.
type Logger struct {
	Log *zap.Logger

	// File, when set, receives JSON logs rotated by lumberjack in addition
	// to the console output.
	File string
	// MaxSizeMB is the rotation threshold of File.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// New returns a Logger with a no-op Log.
func New() *Logger {
	return &Logger{Log: zap.NewNop(), MaxSizeMB: 10, MaxBackups: 3}
}

// Init replaces Log with a production logger at level, e.g. "debug" or
// "Info".
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), lvl),
	}
	if l.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   l.File,
				MaxSize:    l.MaxSizeMB,
				MaxBackups: l.MaxBackups,
			}),
			lvl,
		))
	}

	l.Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}
