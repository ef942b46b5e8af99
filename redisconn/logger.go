package redisconn

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogKind enumerates connection lifecycle events fed to the Logger hook.
type LogKind int

const (
	LogConnecting LogKind = iota
	LogConnected
	LogConnectFailed
	LogBroken
	LogSubscribed
	LogClosed
)

// Logger is the hook receiving connection lifecycle events. conn is nil for
// events raised before a connection object exists.
type Logger interface {
	Report(event LogKind, conn *Conn, v ...interface{})
}

// ZapLogger reports connection events through a zap logger.
type ZapLogger struct {
	L *zap.Logger
}

func (z ZapLogger) Report(event LogKind, conn *Conn, v ...interface{}) {
	addr := zap.Skip()
	if conn != nil {
		addr = zap.String("addr", conn.RemoteName())
	} else if len(v) > 0 {
		if s, ok := v[0].(string); ok {
			addr = zap.String("addr", s)
		}
	}
	switch event {
	case LogConnecting:
		z.L.Info("redis: connecting", addr)
	case LogConnected:
		z.L.Info("redis: connected", addr)
	case LogConnectFailed:
		z.L.Warn("redis: connection failed", addr, errField(v))
	case LogBroken:
		z.L.Warn("redis: connection broken", addr, errField(v))
	case LogSubscribed:
		z.L.Info("redis: connection entered subscription mode", addr)
	case LogClosed:
		z.L.Debug("redis: connection closed", addr)
	default:
		z.L.Warn("redis: unexpected event", addr, zap.Int("event", int(event)), zap.Any("args", v))
	}
}

func errField(v []interface{}) zap.Field {
	for _, x := range v {
		if err, ok := x.(error); ok {
			return zap.Error(err)
		}
	}
	return zap.Skip()
}

// defaultLogger writes console lines to stderr at info level, in the spirit
// of a production zap setup but readable during development.
var defaultLogger Logger = func() Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return ZapLogger{L: l}
}()

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Report(LogKind, *Conn, ...interface{}) {}
