// Package log provides structured logging with endpoint context.
//
// Two logger variants are available:
//   - Logger: structured zap.Logger for the transfer hot path
//   - SugaredLogger: printf-style logging for CLI output
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/haul/types"
)

// Logger provides structured logging with endpoint context.
// Every entry carries the role and endpoint_id of the owning endpoint.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger for an endpoint. Output defaults to os.Stderr,
// which keeps stdout free for the stream transport in worker processes.
func NewLogger(meta *types.EndpointMeta) *Logger {
	return NewLoggerWithWriter(meta, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing JSON lines to w.
func NewLoggerWithWriter(meta *types.EndpointMeta, w io.Writer) *Logger {
	zapLogger := zap.New(newCore(w))
	if meta != nil {
		zapLogger = zapLogger.With(contextFields(meta)...)
	}
	return &Logger{zap: zapLogger}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
}

func contextFields(meta *types.EndpointMeta) []zap.Field {
	fields := []zap.Field{
		zap.String("role", string(meta.Role)),
		zap.String("endpoint_id", meta.EndpointID),
	}
	if meta.TransferID != "" {
		fields = append(fields, zap.String("transfer_id", meta.TransferID))
	}
	return fields
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := newCore(w)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// WithTransfer returns a logger that tags every entry with transferID.
func (l *Logger) WithTransfer(transferID string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("transfer_id", transferID))}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
