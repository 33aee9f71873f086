package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Newはdevなら開発用（コンソール）、それ以外は本番用（JSON）のloggerを返す。
func New(env string, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
