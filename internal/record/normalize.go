package record

import (
	"math"
	"strconv"
	"strings"
)

var (
	buyKeywords  = []string{" BUY", "RTP_BUY", "KWK", "SIP_REG"}
	sellKeywords = []string{" SELL", "RTP_SELL"}
)

// NormalizeType 将 TYPE 列的各种写法折叠为 BUY/SELL。
// 不认识的值原样（去空格转大写后）返回，后续匹配自然落空。
func NormalizeType(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return ""
	}
	for _, kw := range buyKeywords {
		if strings.Contains(upper, kw) {
			return string(SideBuy)
		}
	}
	for _, kw := range sellKeywords {
		if strings.Contains(upper, kw) {
			return string(SideSell)
		}
	}
	if strings.HasPrefix(upper, "TSL") {
		return string(SideSell)
	}
	return upper
}

// ParseSide 将 TYPE 列解析为下单方向：归一化结果非 BUY 一律按 SELL 处理。
func ParseSide(rawType string) Side {
	if NormalizeType(rawType) == string(SideBuy) {
		return SideBuy
	}
	return SideSell
}

// ParseAction 将 ACTION 列解析为操作类型，按关键字包含判断。
func ParseAction(raw string) Action {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(upper, "INSERT"), strings.Contains(upper, "PLACE"):
		return ActionPlace
	case strings.Contains(upper, "UPDATE"):
		return ActionUpdate
	case strings.Contains(upper, "DELETE"):
		return ActionDelete
	default:
		return ActionUnknown
	}
}

// SplitTicker 拆出 EXCHANGE:SYMBOL 前缀，缺省交易所由配置给出。
func SplitTicker(ticker, defaultExchange string) (exchange, symbol string) {
	if idx := strings.Index(ticker, ":"); idx >= 0 {
		return strings.TrimSpace(ticker[:idx]), strings.TrimSpace(ticker[idx+1:])
	}
	return defaultExchange, strings.TrimSpace(ticker)
}

// ParseNumber 宽容地解析数值：去千分位逗号，空串与 nan/none/null/- 视为缺失。
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	switch strings.ToLower(s) {
	case "nan", "none", "null", "-":
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatFromNumber 解析失败时返回 0。
func FloatFromNumber(raw string) float64 {
	f, ok := ParseNumber(raw)
	if !ok {
		return 0
	}
	return f
}

// IntFromNumber 返回四舍五入后的整数，解析失败返回 0。
func IntFromNumber(raw string) int {
	f, ok := ParseNumber(raw)
	if !ok {
		return 0
	}
	return int(math.Round(f))
}

// FloatsEqual 以给定容差比较两个数值。
func FloatsEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// NormalizeTriggerID 将跟踪表中自由格式的触发单编号归一化。
// 合法时返回正整数；空白、nan/none/null、零值或无法解析时 ok 为 false。
func NormalizeTriggerID(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return 0, false
	}
	if s == "0" || s == "0.0" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	id := int(f)
	if id <= 0 {
		return 0, false
	}
	return id, true
}
