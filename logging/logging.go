package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger

	InfoLog *zap.SugaredLogger
	WarnLog *zap.SugaredLogger
	ErrLog  *zap.SugaredLogger
)

func init() {

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}

	SetLogger(l)
}

// SetLogger replaces the logger behind InfoLog, WarnLog and ErrLog.
// Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {

	if l == nil {
		l = zap.NewNop()
	}

	base = l
	InfoLog = l.Named("info").Sugar()
	WarnLog = l.Named("warn").Sugar()
	ErrLog = l.Named("err").Sugar()
}

func Logger() *zap.Logger {
	return base
}

func Sync() {
	_ = base.Sync()
}
