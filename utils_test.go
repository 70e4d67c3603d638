package mqdispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetTTLFromContext(t *testing.T) {
	assert.Zero(t, GetTTLFromContext(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ttl := GetTTLFromContext(ctx)
	assert.Greater(t, ttl, 59*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Zero(t, GetTTLFromContext(expired))
}

func TestWithDefaultTimeout(t *testing.T) {
	ctx, cancel := WithDefaultTimeout(context.Background(), time.Second)
	defer cancel()
	assert.InDelta(t, float64(time.Second), float64(GetTTLFromContext(ctx)), float64(100*time.Millisecond))

	// 调用方的deadline优先
	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()
	ctx2, cancel2 := WithDefaultTimeout(parent, time.Second)
	defer cancel2()
	assert.Greater(t, GetTTLFromContext(ctx2), time.Minute)

	ctx3, cancel3 := WithDefaultTimeout(context.Background(), 0)
	defer cancel3()
	_, ok := ctx3.Deadline()
	assert.False(t, ok)
}

func TestCheckTTL(t *testing.T) {
	assert.NoError(t, CheckTTL(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	assert.NoError(t, CheckTTL(ctx))
	cancel()
	assert.ErrorIs(t, CheckTTL(ctx), context.Canceled)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.ErrorIs(t, CheckTTL(expired), context.DeadlineExceeded)
}
