package logger

import (
	"context"
	"os"

	"github.com/printmate/order-service/internal/config"
	sqldblogger "github.com/simukti/sqldb-logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application logging interface. It hides the concrete
// zap logger behind the methods the services actually use and doubles
// as the sqldb-logger adapter so database queries land in the same sink.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// With returns a logger based off the root logger and decorated
	// with the given key-value pairs.
	With(ctx context.Context, args ...interface{}) Logger

	// Log implements the sqldblogger.Logger interface.
	Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]interface{})

	Sync() error
}

type appLogger struct {
	*zap.SugaredLogger
}

// New builds a logger writing to stderr and, when a path is configured,
// to a size-rotated log file.
func New(cfg *config.Config) Logger {
	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			level,
		),
	}

	if cfg.Logger.Path != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Logger.Path,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			fileWriter,
			level,
		))
	}

	core := zapcore.NewTee(cores...)

	return &appLogger{zap.New(core, zap.AddCaller()).Sugar()}
}

// NewWithZap wraps an existing zap logger. Intended for tests.
func NewWithZap(z *zap.Logger) Logger {
	return &appLogger{z.Sugar()}
}

func (l *appLogger) With(_ context.Context, args ...interface{}) Logger {
	return &appLogger{l.SugaredLogger.With(args...)}
}

// Log routes database query logs into the application logger.
func (l *appLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	args := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}

	switch level {
	case sqldblogger.LevelError:
		l.Errorw(msg, args...)
	case sqldblogger.LevelInfo:
		l.Infow(msg, args...)
	default:
		l.Debugw(msg, args...)
	}
}
