// Package call 把所有外部 API 调用包进限流与重试之中。
// 这是整个系统里唯一允许为节流或退避而休眠的地方。
package call

import (
	"context"
	"sync"
	"time"
)

// windowSpan 为滚动窗口的长度。
const windowSpan = 60 * time.Second

// windowSlack 在等待窗口腾出容量时额外加的余量。
const windowSlack = 10 * time.Millisecond

// Sleeper 抽象可中断的休眠，测试中注入空实现。
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultSleep 是可被 context 取消的休眠实现。
func DefaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Window 是滚动 60 秒窗口内的调用预算。
// 预算耗尽时 Wait 会阻塞，直到最早的一次调用滑出窗口。
type Window struct {
	mu     sync.Mutex
	limit  int
	stamps []time.Time

	now   func() time.Time
	sleep Sleeper
}

// NewWindow 创建每分钟最多 limit 次调用的窗口。
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = 1
	}
	return &Window{
		limit: limit,
		now:   time.Now,
		sleep: DefaultSleep,
	}
}

// Wait 阻塞到窗口有容量，然后登记本次调用。
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.evict(now)

		if len(w.stamps) < w.limit {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}

		wait := windowSpan - now.Sub(w.stamps[0]) + windowSlack
		w.mu.Unlock()

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evict 丢弃滑出窗口的时间戳，调用方需持有锁。
func (w *Window) evict(now time.Time) {
	idx := 0
	for idx < len(w.stamps) && now.Sub(w.stamps[idx]) > windowSpan {
		idx++
	}
	if idx > 0 {
		w.stamps = w.stamps[idx:]
	}
}
