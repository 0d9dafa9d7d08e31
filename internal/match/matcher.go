// Package match 判断指令与既有触发单之间的对应关系。
// 纯函数，无副作用。
package match

import (
	"strings"

	"gtt-sync/internal/record"
)

// Mode 控制匹配使用的键宽度。
type Mode int

const (
	// Strict 四要素匹配（标的、方向、数量、触发价），用于 PLACE 查重。
	Strict Mode = iota
	// Loose 两要素匹配（标的、方向），用于 UPDATE/DELETE 定位目标：
	// 用户很可能正在改价或改量，所以故意放宽。
	Loose
)

// PriceTolerance 是触发价比较的默认绝对容差，吸收浮点与格式化噪声。
const PriceTolerance = 0.01

// Find 返回与指令匹配的全部既有触发单。
func Find(instr record.Instruction, orders []record.ExistingOrder, mode Mode) []record.ExistingOrder {
	var matches []record.ExistingOrder
	for _, order := range orders {
		var ok bool
		if mode == Loose {
			ok = looseMatch(instr, order)
		} else {
			ok = strictMatch(instr, order)
		}
		if ok {
			matches = append(matches, order)
		}
	}
	return matches
}

func strictMatch(instr record.Instruction, order record.ExistingOrder) bool {
	if !tickersEqual(instr.Ticker, order.Ticker) {
		return false
	}
	if record.NormalizeType(instr.RawType) != record.NormalizeType(order.RawType) {
		return false
	}
	if instr.Units != order.Units {
		return false
	}
	return record.FloatsEqual(instr.TriggerPrice, order.TriggerPrice, PriceTolerance)
}

func looseMatch(instr record.Instruction, order record.ExistingOrder) bool {
	return tickersEqual(instr.Ticker, order.Ticker) &&
		record.NormalizeType(instr.RawType) == record.NormalizeType(order.RawType)
}

func tickersEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
