package call

import (
	"context"
	"testing"
	"time"
)

func TestWindow_AllowsUpToLimitWithoutWaiting(t *testing.T) {
	w := NewWindow(3)
	slept := false
	w.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if slept {
		t.Errorf("no sleep expected under the limit")
	}
}

func TestWindow_BlocksUntilOldestCallAgesOut(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := NewWindow(2)
	w.now = func() time.Time { return now }

	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		// 模拟时间流逝，让最早的时间戳滑出窗口。
		now = now.Add(d)
		return nil
	}

	for i := 0; i < 2; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}

	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if len(sleeps) == 0 {
		t.Fatalf("expected third call to block")
	}
	if sleeps[0] < windowSpan || sleeps[0] > windowSpan+time.Second {
		t.Errorf("unexpected wait duration %v", sleeps[0])
	}
}

func TestWindow_EvictsExpiredStamps(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := NewWindow(2)
	w.now = func() time.Time { return now }
	w.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("should not sleep after stamps expire")
		return nil
	}

	for i := 0; i < 2; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}

	now = now.Add(61 * time.Second)
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
}
