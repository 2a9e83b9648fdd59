// Package xlog is the diagnostics logger of the containers in this
// module. It is a thin, swappable wrapper around zap: the containers
// report their few local error conditions (invalid guiding maximums,
// null elements offered to a set) through the package-level default
// logger, and embedders redirect them by replacing it. Register
// overflow is not logged; it is returned to the caller as an error.
package xlog

import (
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xconc/lib/infra"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

func (lvl LogLevel) zapLevel() zapcore.Level {
	switch lvl {
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelDebug:
		fallthrough
	default:
	}
	return zapcore.DebugLevel
}

type LogEncoderType uint8

const (
	JSON LogEncoderType = iota
	PlainText
)

func (typ LogEncoderType) encoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	if typ == PlainText {
		return zapcore.NewConsoleEncoder
	}
	return zapcore.NewJSONEncoder
}

type XLogger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	// Error logs msg at error level; a non-nil err is attached as a
	// field, together with its stack if it carries one.
	Error(err error, msg string, fields ...zap.Field)
	Logf(lvl zapcore.Level, format string, args ...any)
	IncreaseLogLevel(lvl zapcore.Level)
	Sync() error
}

type xLogger struct {
	logger     atomic.Pointer[zap.Logger]
	lvlEnabler zap.AtomicLevel
}

type xLoggerOpts struct {
	level   LogLevel
	encoder LogEncoderType
	ws      zapcore.WriteSyncer
	async   bool
}

type XLoggerOption func(*xLoggerOpts)

func WithLogLevel(lvl LogLevel) XLoggerOption {
	return func(o *xLoggerOpts) { o.level = lvl }
}

func WithEncoder(typ LogEncoderType) XLoggerOption {
	return func(o *xLoggerOpts) { o.encoder = typ }
}

func WithWriteSyncer(ws zapcore.WriteSyncer) XLoggerOption {
	return func(o *xLoggerOpts) { o.ws = ws }
}

// WithAsyncSyncer moves writes off the logging goroutine onto a
// single-worker ants pool.
func WithAsyncSyncer() XLoggerOption {
	return func(o *xLoggerOpts) { o.async = true }
}

var encoderCfg = zapcore.EncoderConfig{
	MessageKey:    "msg",
	LevelKey:      "lvl",
	EncodeLevel:   zapcore.CapitalLevelEncoder,
	TimeKey:       "ts",
	EncodeTime:    zapcore.ISO8601TimeEncoder,
	CallerKey:     "callAt",
	EncodeCaller:  zapcore.ShortCallerEncoder,
	NameKey:       "component",
	EncodeName:    zapcore.FullNameEncoder,
	StacktraceKey: zapcore.OmitKey,
}

func NewXLogger(opts ...XLoggerOption) XLogger {
	cfg := &xLoggerOpts{
		level:   LogLevelWarn,
		encoder: PlainText,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.ws == nil {
		cfg.ws = &zapcore.BufferedWriteSyncer{
			WS:            zapcore.Lock(os.Stderr),
			Size:          512 * 1024,
			FlushInterval: 30 * time.Second,
		}
	}
	if cfg.async {
		cfg.ws = XLogAsyncSyncer(cfg.ws)
	}
	l := &xLogger{
		lvlEnabler: zap.NewAtomicLevelAt(cfg.level.zapLevel()),
	}
	core := zapcore.NewCore(cfg.encoder.encoder()(encoderCfg), cfg.ws, l.lvlEnabler)
	l.logger.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Named("XConc"))
	return l
}

func (l *xLogger) Debug(msg string, fields ...zap.Field) {
	l.logger.Load().Debug(msg, fields...)
}

func (l *xLogger) Info(msg string, fields ...zap.Field) {
	l.logger.Load().Info(msg, fields...)
}

func (l *xLogger) Warn(msg string, fields ...zap.Field) {
	l.logger.Load().Warn(msg, fields...)
}

func (l *xLogger) Error(err error, msg string, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
		if frames := infra.ErrorStackFrames(err); len(frames) > 0 {
			fields = append(fields, zap.Any("errorStack", frames))
		}
	}
	l.logger.Load().Error(msg, fields...)
}

func (l *xLogger) Logf(lvl zapcore.Level, format string, args ...any) {
	l.logger.Load().Sugar().Logf(lvl, format, args...)
}

// IncreaseLogLevel only raises the threshold; lowering it again is the
// embedder's business through a fresh logger.
func (l *xLogger) IncreaseLogLevel(lvl zapcore.Level) {
	if lvl > l.lvlEnabler.Level() {
		l.lvlEnabler.SetLevel(lvl)
	}
}

func (l *xLogger) Sync() error {
	return l.logger.Load().Sync()
}

var defaultLogger atomic.Pointer[XLogger]

func init() {
	l := NewXLogger()
	defaultLogger.Store(&l)
}

func Default() XLogger {
	return *defaultLogger.Load()
}

// ReplaceDefault swaps the logger the containers report through and
// returns the previous one.
func ReplaceDefault(l XLogger) XLogger {
	if l == nil {
		return Default()
	}
	old := defaultLogger.Swap(&l)
	return *old
}

func Debug(msg string, fields ...zap.Field) { Default().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { Default().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { Default().Warn(msg, fields...) }

func Error(err error, msg string, fields ...zap.Field) { Default().Error(err, msg, fields...) }

func Sync() error { return Default().Sync() }
