package mqdispatch

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// GetUniqKey 生成短的唯一ID，用作命令ID与消息Key
func GetUniqKey() string {
	uid := uuid.New()
	return base64.RawURLEncoding.EncodeToString(uid[:])
}

// GetTTLFromContext 返回ctx剩余的有效时间，无deadline或已过期时为0
func GetTTLFromContext(ctx context.Context) (ttl time.Duration) {
	due, ok := ctx.Deadline()
	if ok {
		now := time.Now()
		if now.Before(due) {
			ttl = due.Sub(now)
		}
	}
	return
}

// WithDefaultTimeout 在ctx没有deadline时附加默认超时
func WithDefaultTimeout(ctx context.Context, ttl time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || ttl <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ttl)
}

// CheckTTL 在ctx已取消或已无剩余时间时返回错误，避免发出注定超时的请求
func CheckTTL(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); ok && GetTTLFromContext(ctx) == 0 {
		return context.DeadlineExceeded
	}
	return nil
}
