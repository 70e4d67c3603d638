package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RlogAdapter 把rocketmq客户端内部日志（rlog）接入全局zap日志
type RlogAdapter struct {
	l *zap.Logger
}

func NewRlogAdapter() *RlogAdapter {
	return &RlogAdapter{l: Named("rocketmq")}
}

func (a *RlogAdapter) write(level zapcore.Level, msg string, fields map[string]interface{}) {
	if msg == "" && len(fields) == 0 {
		return
	}
	if ce := a.l.Check(level, msg); ce != nil {
		ce.Write(newFields(fields)...)
	}
}

func (a *RlogAdapter) Debug(msg string, fields map[string]interface{}) {
	a.write(zap.DebugLevel, msg, fields)
}

func (a *RlogAdapter) Info(msg string, fields map[string]interface{}) {
	a.write(zap.InfoLevel, msg, fields)
}

func (a *RlogAdapter) Warning(msg string, fields map[string]interface{}) {
	a.write(zap.WarnLevel, msg, fields)
}

func (a *RlogAdapter) Error(msg string, fields map[string]interface{}) {
	a.write(zap.ErrorLevel, msg, fields)
}

// Fatal rlog的fatal不应终止进程，按error输出
func (a *RlogAdapter) Fatal(msg string, fields map[string]interface{}) {
	a.write(zap.ErrorLevel, msg, fields)
}

func newFields(fields map[string]interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return zapFields
}

// Level rlog的级别与全局级别共用
func (a *RlogAdapter) Level(level string) {
	SetLevel(level)
}

// 不支持，输出目标由InitLog决定
func (a *RlogAdapter) OutputPath(path string) (err error) {
	return nil
}
