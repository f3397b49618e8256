package logger

import (
	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
)

// AccessLog is the dedicated request log, kept apart from the host log so it
// can be rotated and shipped separately.
type AccessLog struct{ *zap.Logger }

func ProvideLogger(cfg config.Config) *zap.Logger {
	return NewLog(cfg.Host.LogDir, "exthost.log", ParseLevel(cfg.Host.LogLevel)).
		With(zap.String("service", cfg.Host.Service))
}

func ProvideAccessLog(cfg config.Config) AccessLog {
	return AccessLog{NewLog(cfg.Host.LogDir, "access.log", ParseLevel(cfg.Host.LogLevel))}
}

func ProvideLoggerMiddleware(l AccessLog) *Middleware { return &Middleware{log: l.Logger} }
