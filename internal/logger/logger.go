package logger

import (
	stdlog "log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a logger
type Logger struct {
	*zap.SugaredLogger
}

type options struct {
	console bool
	service string
}

// Option configures a logger
type Option func(*options)

// WithConsole logs human readable lines to stderr only, keeping stdout free for command output
func WithConsole() Option {
	return func(o *options) {
		o.console = true
	}
}

// WithService adds a service field to every entry
func WithService(name string) Option {
	return func(o *options) {
		o.service = name
	}
}

// New creates a new logger.
// By default entries are JSON, errors go to stderr and everything else to stdout.
func New(loglevel zapcore.Level, opts ...Option) *Logger {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	var core zapcore.Core
	if o.console {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), stderr, loglevel)
	} else {
		encoder := zapcore.NewJSONEncoder(encoderConfig)

		stderrLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= loglevel && lvl >= zapcore.ErrorLevel
		})
		stdoutLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= loglevel && lvl < zapcore.ErrorLevel
		})

		core = zapcore.NewTee(
			zapcore.NewCore(encoder, stderr, stderrLevel),
			zapcore.NewCore(encoder, stdout, stdoutLevel),
		)
	}

	log := zap.New(core, zap.AddCaller())
	if o.service != "" {
		log = log.With(zap.String("service", o.service))
	}

	// Redirect stdlib log package to zap
	_, _ = zap.RedirectStdLogAt(log, zapcore.ErrorLevel)

	return &Logger{
		log.Sugar(),
	}
}

type httpErrorLog struct {
	log *Logger
}

// Client side noise from net/http is logged at debug level
var httpDebugPrefixes = []string{
	"http: URL query contains semicolon",
	"http: TLS handshake error",
}

func (h *httpErrorLog) Write(p []byte) (int, error) {
	m := strings.TrimSpace(string(p))

	for _, prefix := range httpDebugPrefixes {
		if strings.HasPrefix(m, prefix) {
			h.log.Debug(m)
			return len(p), nil
		}
	}

	h.log.Error(m)
	return len(p), nil
}

// NewHTTPErrorLog returns a stdlib logger for http.Server.ErrorLog
func NewHTTPErrorLog(logger *Logger) *stdlog.Logger {
	return stdlog.New(&httpErrorLog{logger}, "", 0)
}

// With returns a logger that adds the given key-value pairs to every entry
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{l.SugaredLogger.With(args...)}
}
