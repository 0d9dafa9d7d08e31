package engine

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gtt-sync/internal/broker"
)

// gttFetcher 提供券商侧在途触发单的全量快照。
type gttFetcher interface {
	FetchGTTs(ctx context.Context) ([]broker.GTTOrder, error)
}

// mirrorTarget 是镜像表需要提供的写入能力。
type mirrorTarget interface {
	Tab() string
	Overwrite(ctx context.Context, values [][]string) error
}

// mirrorHeader 是镜像表的固定表头，列序属于对外约定。
var mirrorHeader = []string{
	"GTT ID", "Symbol", "Exchange", "Trigger Type", "Trigger Value",
	"Order Price", "Order Qty", "Order Type", "Product", "Transaction Type", "Status",
}

// RefreshMirror 拉取券商全部在途触发单并重写镜像表。
// 镜像只是快照，任何失败都只记日志，不影响对账结果。
func RefreshMirror(ctx context.Context, fetcher gttFetcher, target mirrorTarget, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	orders, err := fetcher.FetchGTTs(ctx)
	if err != nil {
		logger.Error("拉取在途触发单失败，镜像表保持原状", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		logger.Info("券商侧没有在途触发单，镜像表保持原状")
		return
	}

	values := make([][]string, 0, len(orders)+1)
	values = append(values, mirrorHeader)
	for _, o := range orders {
		values = append(values, []string{
			strconv.Itoa(o.ID),
			o.Symbol,
			o.Exchange,
			o.TriggerType,
			formatFloat(o.TriggerValue),
			formatFloat(o.OrderPrice),
			formatFloat(o.Quantity),
			o.OrderType,
			o.Product,
			o.TransactionType,
			o.Status,
		})
	}

	if err := target.Overwrite(ctx, values); err != nil {
		logger.Error("重写镜像表失败", zap.String("tab", target.Tab()), zap.Error(err))
		return
	}
	logger.Info("镜像表已刷新",
		zap.String("tab", target.Tab()),
		zap.Int("orders", len(orders)),
	)
}

// cellReader 读取任意工作表的单个单元格，用于收尾校验。
type cellReader interface {
	ReadCell(ctx context.Context, tab, cell string) (string, error)
}

// Check 是收尾校验的一项：指定单元格期望读到 "0"。
type Check struct {
	Tab  string
	Cell string
}

// RunPostChecks 逐项读取校验单元格并记录通过与否，结果只进日志。
func RunPostChecks(ctx context.Context, reader cellReader, checks []Check, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, check := range checks {
		name := check.Tab + "!" + check.Cell
		val, err := reader.ReadCell(ctx, check.Tab, check.Cell)
		if err != nil {
			logger.Error("❌ Post-check failed: could not read cell",
				zap.String("cell", name), zap.Error(err))
			continue
		}

		if strings.TrimSpace(val) == "0" {
			logger.Info("✅ Post-check passed", zap.String("cell", name))
		} else {
			logger.Error("❌ Post-check failed",
				zap.String("cell", name), zap.String("value", val))
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
