package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatText format log text
	FormatText = "text"
	// FormatJSON format log json
	FormatJSON = "json"
)

var (
	// 可被InitLog整体替换，派发worker等goroutine并发读取
	current atomic.Pointer[zap.Logger]
	// 所有Named派生出的logger共用同一级别
	aLevel = zap.NewAtomicLevel()
)

// 日志配置
type logConfig struct {
	level  zapcore.Level
	format string
	out    io.Writer
}

// Option function option
type Option func(*logConfig)

// Level set log level default info; "warning" is accepted for rlog
func Level(level string) Option {
	return func(c *logConfig) {
		if level != "" {
			c.level = parseLevel(level)
		}
	}
}

// Format log json or text
func Format(format string) Option {
	return func(c *logConfig) {
		c.format = FormatText
		if strings.EqualFold(format, FormatJSON) {
			c.format = FormatJSON
		}
	}
}

// Output redirects log lines, stdout by default
func Output(w io.Writer) Option {
	return func(c *logConfig) {
		if w != nil {
			c.out = w
		}
	}
}

func init() {
	InitLog()
}

func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zap.WarnLevel
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.InfoLevel
	}
	return l
}

func (c *logConfig) encoder() zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if c.format == FormatJSON {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

// InitLog conf. Without options it only makes sure a logger exists.
func InitLog(opts ...Option) {
	if current.Load() != nil && len(opts) == 0 {
		return
	}
	c := &logConfig{level: zap.InfoLevel, format: FormatText, out: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	aLevel.SetLevel(c.level)
	core := zapcore.NewCore(c.encoder(), zapcore.AddSync(c.out), aLevel)
	// 不开启Development：库代码里的DPanic不应终止调用方进程
	current.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

func SetLevel(level string) {
	aLevel.SetLevel(parseLevel(level))
}

func logger() *zap.Logger {
	return current.Load()
}

// Named returns a component logger bound to the logger current at call time
func Named(name string) *zap.Logger {
	return logger().WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

func Sync() error {
	return logger().Sync()
}

// Debug output log
func Debug(msg string, fields ...zap.Field) {
	logger().Debug(msg, fields...)
}

// Info output log
func Info(msg string, fields ...zap.Field) {
	logger().Info(msg, fields...)
}

// Warn output log
func Warn(msg string, fields ...zap.Field) {
	logger().Warn(msg, fields...)
}

// Error output log
func Error(msg string, fields ...zap.Field) {
	logger().Error(msg, fields...)
}

// Fatal output log
func Fatal(msg string, fields ...zap.Field) {
	logger().Fatal(msg, fields...)
}
