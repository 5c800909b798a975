package log

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// New builds the JSON logger used by the service. When file is non-empty the
// output is tee'd to it in addition to stdout.
func New(level, file string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		_ = lvl.UnmarshalText([]byte("info"))
	}

	enc := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		MessageKey:    "action",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339TimeEncoder,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	outputs := []string{"stdout"}
	if file != "" {
		outputs = append(outputs, file)
	}
	cfg := zap.Config{
		Level:             lvl,
		Encoding:          "json",
		EncoderConfig:     enc,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil && file != "" {
		// an unwritable log file should not stop the service
		_, _ = os.Stderr.WriteString("[warn] could not open log file " + file + ": " + err.Error() + "\n")
		cfg.OutputPaths = []string{"stdout"}
		return cfg.Build(zap.AddCallerSkip(2))
	}
	return l, err
}

// Set replaces the process logger and returns the previous one.
func Set(l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return current.Swap(l)
}

func L() *zap.Logger { return current.Load() }

func Sync() { _ = current.Load().Sync() }

func write(level zapcore.Level, c *fiber.Ctx, action string, err error, fields map[string]any) {
	l := current.Load()
	if ce := l.Check(level, action); ce != nil {
		zf := make([]zap.Field, 0, len(fields)+8)
		if c != nil {
			zf = append(zf,
				zap.String("ip", c.IP()),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().StatusCode()),
			)
			if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
				zf = append(zf, zap.String("req_id", rid))
			}
			if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
				zf = append(zf, zap.String("user_id", uid))
			}
		}
		if err != nil {
			zf = append(zf, zap.String("err", err.Error()))
		}
		if len(fields) > 0 {
			zf = append(zf, zap.Any("fields", fields))
		}
		ce.Write(zf...)
	}
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, c, action, nil, fields)
}

// Audit records a state change made on behalf of a caller.
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	fields = withKind(fields, "audit")
	write(zapcore.InfoLevel, c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.WarnLevel, c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zapcore.ErrorLevel, c, action, err, fields)
}

// Bg logs from background workers that have no request.
func Bg(action string, err error, fields map[string]any) {
	level := zapcore.InfoLevel
	if err != nil {
		level = zapcore.ErrorLevel
	}
	write(level, nil, action, err, fields)
}

func withKind(fields map[string]any, kind string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["kind"] = kind
	return out
}
