package record

import (
	"errors"
	"strings"
)

// 指令表与跟踪表的表头列名。
const (
	ColTicker    = "TICKER"
	ColType      = "TYPE"
	ColUnits     = "UNITS"
	ColPrice     = "GTT PRICE"
	ColDate      = "GTT DATE"
	ColAction    = "ACTION"
	ColMethod    = "METHOD"
	ColStatus    = "STATUS"
	ColLivePrice = "LIVE PRICE"
	ColTickSize  = "TICK SIZE"
	ColTriggerID = "GTT ID"

	// 市价模式专用的限价列。
	ColMarketPrice = "PRICE"
)

// Action 表示指令期望的操作。
type Action string

const (
	ActionPlace   Action = "PLACE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionUnknown Action = "UNKNOWN"
)

// Side 表示买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ErrMissingField 表示指令行缺少 TICKER/TYPE/ACTION 之一。
var ErrMissingField = errors.New("missing TICKER / TYPE / ACTION")

// Instruction 是一条经过解析校验的指令行。
// 同一轮对账内不可变，RowNumber 用于回写状态。
type Instruction struct {
	RowNumber    int
	Ticker       string // 原始值，含可能的交易所前缀，用于匹配
	Exchange     string
	Symbol       string
	RawType      string
	Side         Side
	Action       Action
	RawAction    string
	Units        int
	TriggerPrice float64
	TickSize     float64
	LivePrice    float64
	Method       string
}

// ExistingOrder 是跟踪表中一条既有触发单的快照，单轮内只读。
type ExistingOrder struct {
	Ticker       string
	RawType      string
	Units        int
	TriggerPrice float64
	TriggerID    string // 原始值，按需归一化
}

// ParseInstruction 将一行原始表格数据解析为 Instruction。
// TICKER/TYPE/ACTION 任一为空返回 ErrMissingField。
func ParseInstruction(rowNumber int, row map[string]string, defaultExchange string) (Instruction, error) {
	rawTicker := strings.TrimSpace(row[ColTicker])
	rawType := strings.TrimSpace(row[ColType])
	rawAction := strings.TrimSpace(row[ColAction])

	if rawTicker == "" || rawType == "" || rawAction == "" {
		return Instruction{}, ErrMissingField
	}

	exchange, symbol := SplitTicker(rawTicker, defaultExchange)

	return Instruction{
		RowNumber:    rowNumber,
		Ticker:       rawTicker,
		Exchange:     exchange,
		Symbol:       symbol,
		RawType:      rawType,
		Side:         ParseSide(rawType),
		Action:       ParseAction(rawAction),
		RawAction:    rawAction,
		Units:        IntFromNumber(row[ColUnits]),
		TriggerPrice: FloatFromNumber(row[ColPrice]),
		TickSize:     FloatFromNumber(row[ColTickSize]),
		LivePrice:    FloatFromNumber(row[ColLivePrice]),
		Method:       strings.TrimSpace(row[ColMethod]),
	}, nil
}

// ParseExistingOrder 将跟踪表的一行解析为 ExistingOrder。
func ParseExistingOrder(row map[string]string) ExistingOrder {
	return ExistingOrder{
		Ticker:       strings.TrimSpace(row[ColTicker]),
		RawType:      strings.TrimSpace(row[ColType]),
		Units:        IntFromNumber(row[ColUnits]),
		TriggerPrice: FloatFromNumber(row[ColPrice]),
		TriggerID:    strings.TrimSpace(row[ColTriggerID]),
	}
}

// RowIsEmpty 判断一行是否全部为空白。
func RowIsEmpty(row map[string]string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
