package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"gtt-sync/internal/broker"
	"gtt-sync/internal/match"
	"gtt-sync/internal/record"
)

// brokerAPI 是分发器需要的券商能力。
type brokerAPI interface {
	PlaceGTT(ctx context.Context, req broker.GTTRequest) (int, error)
	ModifyGTT(ctx context.Context, triggerID int, req broker.GTTRequest) error
	DeleteGTT(ctx context.Context, triggerID int) error
}

// Dispatcher 把单条指令落实为券商调用并产出结果。
type Dispatcher struct {
	broker    brokerAPI
	bufferPct float64
	tolerance float64
	logger    *zap.Logger
}

// NewDispatcher 创建分发器。tolerance 用于 UPDATE 的免改判断。
func NewDispatcher(b brokerAPI, bufferPct, tolerance float64, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tolerance <= 0 {
		tolerance = match.PriceTolerance
	}
	return &Dispatcher{
		broker:    b,
		bufferPct: bufferPct,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Dispatch 按指令的 ACTION 执行对应操作。
// PLACE 用四要素严格匹配查重；UPDATE/DELETE 用两要素宽松匹配定位目标。
func (d *Dispatcher) Dispatch(ctx context.Context, instr record.Instruction, orders []record.ExistingOrder) Outcome {
	switch instr.Action {
	case record.ActionPlace:
		return d.place(ctx, instr, match.Find(instr, orders, match.Strict))
	case record.ActionUpdate:
		return d.update(ctx, instr, match.Find(instr, orders, match.Loose))
	case record.ActionDelete:
		return d.delete(ctx, instr, match.Find(instr, orders, match.Loose))
	default:
		return failed("❌ unknown action", fmt.Sprintf("Unknown ACTION: %s", instr.RawAction))
	}
}

func (d *Dispatcher) place(ctx context.Context, instr record.Instruction, matches []record.ExistingOrder) Outcome {
	if len(matches) > 0 {
		return Outcome{Kind: KindSkippedDup, Status: "⚠️ duplicate found"}
	}
	if instr.TickSize <= 0 {
		return failed("❌ invalid or empty TICK SIZE", fmt.Sprintf("invalid tick size for %s", instr.Ticker))
	}

	limitPrice := BufferAndRound(instr.TriggerPrice, instr.Side, instr.TickSize, d.bufferPct)

	d.logger.Debug("提交条件单",
		zap.Int("row", instr.RowNumber),
		zap.String("symbol", instr.Symbol),
		zap.String("exchange", instr.Exchange),
		zap.Float64("trigger_price", instr.TriggerPrice),
		zap.Float64("limit_price", limitPrice),
	)

	triggerID, err := d.broker.PlaceGTT(ctx, broker.GTTRequest{
		Exchange:     instr.Exchange,
		Symbol:       instr.Symbol,
		Side:         string(instr.Side),
		Units:        instr.Units,
		LimitPrice:   round2(limitPrice),
		TriggerPrice: round2(instr.TriggerPrice),
		LastPrice:    instr.LivePrice,
	})
	if err != nil {
		return failed(fmt.Sprintf("❌ error: %v", err), err.Error())
	}

	d.logger.Info("条件单已提交",
		zap.Int("row", instr.RowNumber),
		zap.String("symbol", instr.Symbol),
		zap.Int("trigger_id", triggerID),
	)
	return Outcome{Kind: KindPlaced, Status: "✅ placed"}
}

func (d *Dispatcher) update(ctx context.Context, instr record.Instruction, matches []record.ExistingOrder) Outcome {
	switch {
	case len(matches) == 0:
		return failed("❌ no match found", "No matching GTT to update")
	case len(matches) > 1:
		return Outcome{
			Kind:       KindConflict,
			Status:     "❌ conflict: multiple matches",
			Candidates: len(matches),
		}
	}

	matched := matches[0]
	triggerID, ok := record.NormalizeTriggerID(matched.TriggerID)
	if !ok {
		return failed("❌ no gtt_id to update",
			fmt.Sprintf("No GTT_ID found for update (was: %s)", matched.TriggerID))
	}

	if matched.Units == instr.Units &&
		math.Abs(matched.TriggerPrice-instr.TriggerPrice) < d.tolerance {
		d.logger.Debug("触发单与指令一致，跳过修改",
			zap.Int("row", instr.RowNumber),
			zap.Int("trigger_id", triggerID),
			zap.Int("units", instr.Units),
			zap.Float64("trigger_price", instr.TriggerPrice),
		)
		return Outcome{Kind: KindSkippedNoChange, Status: "no update needed"}
	}

	if instr.TickSize <= 0 {
		return failed("❌ invalid or empty TICK SIZE", fmt.Sprintf("invalid tick size for %s", instr.Ticker))
	}

	limitPrice := BufferAndRound(instr.TriggerPrice, instr.Side, instr.TickSize, d.bufferPct)

	err := d.broker.ModifyGTT(ctx, triggerID, broker.GTTRequest{
		Exchange:     instr.Exchange,
		Symbol:       instr.Symbol,
		Side:         string(instr.Side),
		Units:        instr.Units,
		LimitPrice:   limitPrice,
		TriggerPrice: instr.TriggerPrice,
		LastPrice:    instr.LivePrice,
	})
	if err != nil {
		return failed(updateStatusForError(err), err.Error())
	}
	return Outcome{Kind: KindUpdated, Status: "✅ updated"}
}

func (d *Dispatcher) delete(ctx context.Context, instr record.Instruction, matches []record.ExistingOrder) Outcome {
	switch {
	case len(matches) == 0:
		return failed("❌ no match found", "No matching GTT to delete")
	case len(matches) > 1:
		return Outcome{
			Kind:       KindConflict,
			Status:     "❌ conflict: multiple matches",
			Candidates: len(matches),
		}
	}

	matched := matches[0]
	triggerID, ok := record.NormalizeTriggerID(matched.TriggerID)
	if !ok {
		return failed("❌ no gtt_id to delete",
			fmt.Sprintf("No GTT_ID found for delete (was: %s)", matched.TriggerID))
	}

	d.logger.Debug("撤销触发单",
		zap.Int("row", instr.RowNumber),
		zap.Int("trigger_id", triggerID),
	)

	if err := d.broker.DeleteGTT(ctx, triggerID); err != nil {
		return failed(updateStatusForError(err), err.Error())
	}
	return Outcome{Kind: KindDeleted, Status: "✅ deleted"}
}

// updateStatusForError 区分券商业务错误与其他错误的状态文案。
func updateStatusForError(err error) string {
	var kiteErr kiteconnect.Error
	if errors.As(err, &kiteErr) {
		return fmt.Sprintf("❌ Kite error: %v", err)
	}
	return fmt.Sprintf("❌ error: %v", err)
}

// BufferAndRound 在基准价上加减缓冲百分比，并取整到最接近的跳价倍数。
// BUY 向上缓冲，SELL 向下缓冲。
func BufferAndRound(basePrice float64, side record.Side, tickSize, bufferPct float64) float64 {
	mult := 1 + bufferPct/100
	if side != record.SideBuy {
		mult = 1 - bufferPct/100
	}
	buffered := basePrice * mult
	rounded := math.Round(buffered/tickSize) * tickSize
	return math.Round(rounded*1e10) / 1e10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
