package broker

// 下单参数中券商约定的常量取值。
const (
	VarietyRegular = "regular"
	VarietyAMO     = "amo"

	productCNC     = "CNC"
	orderTypeLimit = "LIMIT"
	validityDay    = "DAY"
)

// GTTRequest 描述一笔单触发条件单的全部参数。
// Kite 的 GTT 接口不支持订单 tag，这里不提供。
type GTTRequest struct {
	Exchange     string
	Symbol       string
	Side         string // BUY | SELL
	Units        int
	LimitPrice   float64
	TriggerPrice float64
	LastPrice    float64
}

// OrderRequest 描述一笔即时限价单（market-order 模式）。
type OrderRequest struct {
	Exchange string
	Symbol   string
	Side     string
	Units    int
	Price    float64
	Variety  string // regular | amo
}

// GTTOrder 是券商侧一条在途触发单的快照，用于刷新镜像表。
type GTTOrder struct {
	ID              int
	Symbol          string
	Exchange        string
	TriggerType     string
	TriggerValue    float64
	OrderPrice      float64
	Quantity        float64
	OrderType       string
	Product         string
	TransactionType string
	Status          string
}
