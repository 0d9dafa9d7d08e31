package call

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"gtt-sync/internal/config"
)

// Caller 负责单个外部服务的调用节奏：共享滚动窗口限流，
// 瞬时错误按指数退避加抖动重试，致命错误立即上抛。
type Caller struct {
	window    *Window
	retry     config.RetryConfig
	retryable func(error) bool
	logger    *zap.Logger

	sleep  Sleeper
	jitter func() float64
}

// New 创建 Caller。retryable 判定错误是否值得重试，由调用方按服务注入。
func New(window *Window, retry config.RetryConfig, retryable func(error) bool, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &Caller{
		window:    window,
		retry:     retry,
		retryable: retryable,
		logger:    logger,
		sleep:     DefaultSleep,
		jitter:    rand.Float64,
	}
}

// Do 执行一次外部调用。
func (c *Caller) Do(ctx context.Context, operation string, fn func() error) error {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := c.retry.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := c.retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if c.window != nil {
			if err := c.window.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		err := fn()
		latency := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("外部调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", latency),
				)
			}
			return nil
		}
		lastErr = err

		if !c.retryable(err) {
			c.logger.Error("外部调用失败（不可重试）",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			return err
		}

		if attempt >= maxAttempts {
			break
		}

		wait := baseDelay << (attempt - 1)
		if wait > maxDelay {
			wait = maxDelay
		}
		wait += time.Duration(c.jitter() * float64(baseDelay))

		c.logger.Warn("外部调用瞬时失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}

	c.logger.Error("外部调用重试次数耗尽",
		zap.String("operation", operation),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return lastErr
}
