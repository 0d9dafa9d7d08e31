package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

func TestIsRetryable_KiteErrorTypes(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{kiteconnect.NewError(kiteconnect.NetworkError, "connection dropped", nil), true},
		{kiteconnect.NewError(kiteconnect.DataError, "bad gateway", nil), true},
		{kiteconnect.NewError(kiteconnect.TokenError, "token expired", nil), false},
		{kiteconnect.NewError(kiteconnect.InputError, "invalid trigger price", nil), false},
		{kiteconnect.NewError(kiteconnect.OrderError, "insufficient funds", nil), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryable_KeywordHeuristics(t *testing.T) {
	retriable := []error{
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("read quota exceeded for this minute"),
		errors.New("request timed out"),
		errors.New("connection reset by peer"),
		errors.New("upstream returned 503"),
	}
	for _, err := range retriable {
		if !IsRetryable(err) {
			t.Errorf("expected %q to be retriable", err)
		}
	}

	fatal := []error{
		errors.New("order rejected: price outside circuit limits"),
		fmt.Errorf("wrapped: %w", context.Canceled),
		context.DeadlineExceeded,
		nil,
	}
	for _, err := range fatal {
		if IsRetryable(err) {
			t.Errorf("expected %v to be fatal", err)
		}
	}
}

func TestIsRetryable_WrappedKiteError(t *testing.T) {
	inner := kiteconnect.NewError(kiteconnect.NetworkError, "gateway glitch", nil)
	wrapped := fmt.Errorf("place_gtt: %w", inner)
	if !IsRetryable(wrapped) {
		t.Errorf("wrapped kite network error should stay retriable")
	}
}
