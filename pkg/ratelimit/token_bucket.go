// Package ratelimit 客户端侧的请求节流
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket 按每分钟请求数发放令牌。nil 值表示不限流，所有方法都可以安全调用
type TokenBucket struct {
	mu sync.Mutex

	perSecond float64
	burst     float64
	available float64
	updated   time.Time

	now func() time.Time
}

// NewTokenBucket perMinute<=0 返回nil。burst<=0 时取 perMinute/2，至少为1
func NewTokenBucket(perMinute int, burst int) *TokenBucket {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(perMinute/2, 1)
	}
	tb := &TokenBucket{
		perSecond: float64(perMinute) / 60,
		burst:     float64(burst),
		available: float64(burst),
		now:       time.Now,
	}
	tb.updated = tb.now()
	return tb
}

// take 尝试取走一个令牌。失败时返回还需等待的时间
func (tb *TokenBucket) take() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.available = min(tb.burst, tb.available+now.Sub(tb.updated).Seconds()*tb.perSecond)
	tb.updated = now

	if tb.available >= 1 {
		tb.available--
		return 0, true
	}
	deficit := 1 - tb.available
	return time.Duration(deficit / tb.perSecond * float64(time.Second)), false
}

// Allow 不阻塞，有令牌时消耗一个并返回true
func (tb *TokenBucket) Allow() bool {
	if tb == nil {
		return true
	}
	_, ok := tb.take()
	return ok
}

// Wait 阻塞到拿到令牌或ctx结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb == nil {
		return ctx.Err()
	}
	for {
		delay, ok := tb.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
