package broker

import (
	"context"
	"errors"
	"net"
	"strings"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// transientKeywords 是错误文本中的瞬时故障特征。
var transientKeywords = []string{
	"429", "quota", "rate limit", "timeout", "timed out",
	"connection reset", "connection aborted", "connection refused",
	"recv failure", "temporarily unavailable",
	"502", "503", "504",
}

// IsRetryable 判断错误是否为值得重试的瞬时故障。
// 券商显式拒单等领域错误一律视为致命，保留原文供人工排查。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var kiteErr kiteconnect.Error
	if errors.As(err, &kiteErr) {
		switch kiteErr.ErrorType {
		case kiteconnect.NetworkError, kiteconnect.DataError:
			return true
		}
		if kiteErr.Code == 429 || (kiteErr.Code >= 500 && kiteErr.Code <= 599) {
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}

	return false
}
