package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gtt-sync/internal/broker"
	"gtt-sync/internal/call"
	"gtt-sync/internal/config"
	"gtt-sync/internal/record"
)

// orderPlacer 是市价模式需要的券商能力。
type orderPlacer interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error)
}

// 盘中时段内用 regular 品种下单，盘外转 amo。
var (
	marketOpen  = 9*time.Hour + 15*time.Minute
	marketClose = 15*time.Hour + 30*time.Minute
)

// MarketRunner 实现市价单模式：绕过条件单语义，直接按表格逐行下即时限价单。
// 校验不通过的行只记状态跳过，从不重试；STATUS 已填的行静默跳过。
type MarketRunner struct {
	instructions    instructionSource
	reporter        statusReporter
	broker          orderPlacer
	cfg             config.EngineConfig
	defaultExchange string
	logger          *zap.Logger

	now   func() time.Time
	sleep call.Sleeper
}

// NewMarketRunner 创建市价单执行器。
func NewMarketRunner(
	instructions instructionSource,
	reporter statusReporter,
	b orderPlacer,
	cfg config.EngineConfig,
	defaultExchange string,
	logger *zap.Logger,
) *MarketRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketRunner{
		instructions:    instructions,
		reporter:        reporter,
		broker:          b,
		cfg:             cfg,
		defaultExchange: defaultExchange,
		logger:          logger,
		now:             time.Now,
		sleep:           call.DefaultSleep,
	}
}

// Run 清空 STATUS 列后逐批处理整个工作表。
func (m *MarketRunner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	clearStatusColumn(ctx, m.instructions, m.logger)

	startRow := 2
	for {
		rows, err := m.instructions.ReadRows(ctx, startRow, m.cfg.BatchSize)
		if err != nil {
			m.reporter.Flush(ctx)
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("读取市价指令分片失败: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for i, row := range rows {
			rowNumber := startRow + i
			if record.RowIsEmpty(row) {
				continue
			}
			summary.RowsProcessed++

			outcome := m.processRow(ctx, rowNumber, row)
			if outcome.Status != "" {
				m.reporter.Queue(rowNumber, outcome.Status)
			}
			if outcome.Kind == KindFailed {
				summary.Failed = append(summary.Failed, RowIssue{RowNumber: rowNumber, Reason: outcome.Reason})
			}

			if m.cfg.RowPause > 0 {
				if err := m.sleep(ctx, m.cfg.RowPause); err != nil {
					m.reporter.Flush(ctx)
					summary.Duration = time.Since(start)
					return summary, err
				}
			}
		}

		m.reporter.Flush(ctx)
		startRow += len(rows)
	}

	summary.Duration = time.Since(start)
	m.logger.Info("市价单处理完成",
		zap.Int("rows_processed", summary.RowsProcessed),
		zap.Int("failed", len(summary.Failed)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (m *MarketRunner) processRow(ctx context.Context, rowNumber int, row map[string]string) Outcome {
	rawTicker := strings.TrimSpace(row[record.ColTicker])
	if rawTicker == "" {
		return Outcome{Kind: KindSkippedNoChange, Status: "⏭ skipped: missing TICKER"}
	}
	exchange, symbol := record.SplitTicker(rawTicker, m.defaultExchange)

	units := record.IntFromNumber(row[record.ColUnits])
	if units <= 0 {
		return Outcome{Kind: KindSkippedNoChange, Status: "⏭ skipped: invalid or empty UNITS"}
	}

	price := record.FloatFromNumber(row[record.ColMarketPrice])
	if price <= 0 {
		return failed("❌ invalid or empty PRICE", fmt.Sprintf("invalid price for %s", rawTicker))
	}

	tickSize := record.FloatFromNumber(row[record.ColTickSize])
	if tickSize <= 0 {
		return failed("❌ invalid or empty TICK SIZE", fmt.Sprintf("invalid tick size for %s", rawTicker))
	}

	side := record.NormalizeType(row[record.ColAction])
	if side != string(record.SideBuy) && side != string(record.SideSell) {
		return failed(
			fmt.Sprintf("❌ invalid ACTION for MARKET: %s", row[record.ColAction]),
			fmt.Sprintf("unrecognized market action for %s", rawTicker),
		)
	}

	// STATUS 已填表示这一行先前已处理过，静默跳过且不覆盖原状态。
	if strings.TrimSpace(row[record.ColStatus]) != "" {
		return Outcome{Kind: KindSkippedNoChange}
	}

	finalPrice := BufferAndRound(price, record.Side(side), tickSize, m.cfg.PriceBufferPct)
	variety := m.resolveVariety()

	orderID, err := m.broker.PlaceOrder(ctx, broker.OrderRequest{
		Exchange: exchange,
		Symbol:   symbol,
		Side:     side,
		Units:    units,
		Price:    finalPrice,
		Variety:  variety,
	})
	if err != nil {
		m.logger.Error("市价单下单失败",
			zap.Int("row", rowNumber),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return failed(fmt.Sprintf("❌ error: %v", err), err.Error())
	}

	m.logger.Info("市价单已提交",
		zap.Int("row", rowNumber),
		zap.String("side", side),
		zap.String("symbol", symbol),
		zap.Int("units", units),
		zap.String("variety", variety),
		zap.String("order_id", orderID),
	)
	return Outcome{Kind: KindPlaced, Status: "✅ market placed"}
}

// resolveVariety 按当前时刻决定下单品种：交易时段内 regular，盘外 amo。
func (m *MarketRunner) resolveVariety() string {
	now := m.now()
	sinceMidnight := time.Duration(now.Hour())*time.Hour +
		time.Duration(now.Minute())*time.Minute +
		time.Duration(now.Second())*time.Second
	if sinceMidnight >= marketOpen && sinceMidnight <= marketClose {
		return broker.VarietyRegular
	}
	return broker.VarietyAMO
}
