package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gtt-sync/internal/audit"
	"gtt-sync/internal/call"
	"gtt-sync/internal/config"
	"gtt-sync/internal/record"
	"gtt-sync/internal/sheet"
)

// instructionSource 是指令表需要提供的读写能力。
type instructionSource interface {
	Header(ctx context.Context) ([]string, error)
	ReadCell(ctx context.Context, cell string) (string, error)
	ReadRows(ctx context.Context, startRow, numRows int) ([]map[string]string, error)
	BatchClear(ctx context.Context, ranges []string) error
	RowCount(ctx context.Context) (int, error)
}

// trackingSource 是跟踪表需要提供的读取能力。
type trackingSource interface {
	ReadRows(ctx context.Context, startRow, numRows int) ([]map[string]string, error)
}

// statusReporter 聚合状态并批量回写。
type statusReporter interface {
	Queue(rowNumber int, status string)
	Flush(ctx context.Context)
}

// Summary 汇总一轮对账的结果。
type Summary struct {
	Skipped       bool
	RowsProcessed int
	Failed        []RowIssue
	Conflicts     []RowIssue
	Duration      time.Duration
}

// Driver 驱动整轮对账：预检、清状态列、分批读取并逐行分发。
type Driver struct {
	instructions    instructionSource
	tracking        trackingSource
	dispatcher      *Dispatcher
	reporter        statusReporter
	audit           *audit.Service
	cfg             config.EngineConfig
	defaultExchange string
	logger          *zap.Logger

	sleep call.Sleeper
}

// NewDriver 创建对账驱动。auditSvc 允许为 nil。
func NewDriver(
	instructions instructionSource,
	tracking trackingSource,
	dispatcher *Dispatcher,
	reporter statusReporter,
	auditSvc *audit.Service,
	cfg config.EngineConfig,
	defaultExchange string,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		instructions:    instructions,
		tracking:        tracking,
		dispatcher:      dispatcher,
		reporter:        reporter,
		audit:           auditSvc,
		cfg:             cfg,
		defaultExchange: defaultExchange,
		logger:          logger,
		sleep:           call.DefaultSleep,
	}
}

// Run 执行一轮完整对账。
// 预检单元格非正数时整轮跳过；表格读取失败会中断本轮并返回错误。
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if !d.preflight(ctx) {
		summary := Summary{Skipped: true, Duration: time.Since(start)}
		d.audit.RecordPassSummary(ctx, audit.PassSummaryPayload{Skipped: true, Duration: summary.Duration})
		return summary, nil
	}

	clearStatusColumn(ctx, d.instructions, d.logger)

	summary := Summary{}
	startRow := 2
	consecutiveEmpty := 0

	for {
		rawRead, processed, failedRows, conflictRows, err := d.processBatch(ctx, startRow)
		if err != nil {
			d.audit.RecordEngineError(ctx, "batch", fmt.Sprintf("批次处理失败 start_row=%d", startRow), err)
			summary.Duration = time.Since(start)
			return summary, err
		}

		if rawRead == 0 {
			d.logger.Info("表格已读尽，结束本轮")
			break
		}

		if processed == 0 {
			consecutiveEmpty++
			d.logger.Info("本批次没有有效指令",
				zap.Int("start_row", startRow),
				zap.Int("raw_rows", rawRead),
				zap.Int("consecutive_empty", consecutiveEmpty),
			)
			if rawRead < d.cfg.BatchSize {
				d.logger.Info("不足一个完整批次且无有效指令，判定为数据尾部，结束本轮")
				break
			}
			if consecutiveEmpty >= d.cfg.EmptyBatchLim {
				d.logger.Info("连续空批次达到上限，结束本轮",
					zap.Int("limit", d.cfg.EmptyBatchLim))
				break
			}
		} else {
			consecutiveEmpty = 0
		}

		summary.RowsProcessed += processed
		summary.Failed = append(summary.Failed, failedRows...)
		summary.Conflicts = append(summary.Conflicts, conflictRows...)
		startRow += rawRead

		if d.cfg.BatchPause > 0 {
			if err := d.sleep(ctx, d.cfg.BatchPause); err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)

	d.logger.Info("对账完成",
		zap.Int("rows_processed", summary.RowsProcessed),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("conflicts", len(summary.Conflicts)),
		zap.Duration("duration", summary.Duration),
	)
	for _, fr := range summary.Failed {
		d.logger.Warn("失败行", zap.Int("row", fr.RowNumber), zap.String("reason", fr.Reason))
	}
	for _, cr := range summary.Conflicts {
		d.logger.Warn("冲突行", zap.Int("row", cr.RowNumber), zap.String("reason", cr.Reason))
	}

	d.audit.RecordPassSummary(ctx, audit.PassSummaryPayload{
		RowsProcessed: summary.RowsProcessed,
		FailedRows:    toAuditIssues(summary.Failed),
		ConflictRows:  toAuditIssues(summary.Conflicts),
		Duration:      summary.Duration,
	})

	return summary, nil
}

// preflight 读取预检单元格，非正数或读取失败都跳过整轮。
func (d *Driver) preflight(ctx context.Context) bool {
	raw, err := d.instructions.ReadCell(ctx, d.cfg.PreflightCell)
	if err != nil {
		d.logger.Error("读取预检单元格失败，跳过本轮",
			zap.String("cell", d.cfg.PreflightCell), zap.Error(err))
		d.audit.RecordEngineError(ctx, "preflight", "预检单元格读取失败", err)
		return false
	}

	val, ok := record.ParseNumber(raw)
	if !ok || val <= 0 {
		d.logger.Info("预检未通过，跳过本轮",
			zap.String("cell", d.cfg.PreflightCell), zap.String("value", raw))
		return false
	}
	return true
}

// clearStatusColumn 在处理前清空 STATUS 列的旧状态。
// 列不存在或清除失败不会阻断流程。
func clearStatusColumn(ctx context.Context, src instructionSource, logger *zap.Logger) {
	header, err := src.Header(ctx)
	if err != nil {
		logger.Warn("读取表头失败，跳过状态列清除", zap.Error(err))
		return
	}

	col := 0
	for i, name := range header {
		if name == record.ColStatus {
			col = i + 1
			break
		}
	}
	if col == 0 {
		logger.Info("表头中没有 STATUS 列，跳过清除")
		return
	}

	lastRow, err := src.RowCount(ctx)
	if err != nil {
		logger.Warn("读取工作表行数失败，跳过状态列清除", zap.Error(err))
		return
	}
	if lastRow < 2 {
		return
	}

	letter := sheet.ColumnLetter(col)
	clearRange := fmt.Sprintf("%s2:%s%d", letter, letter, lastRow)
	if err := src.BatchClear(ctx, []string{clearRange}); err != nil {
		logger.Warn("清除 STATUS 列失败，继续处理", zap.String("range", clearRange), zap.Error(err))
		return
	}
	logger.Info("已清除 STATUS 列", zap.String("range", clearRange))
}

// processBatch 并行拉取指令与跟踪分片，逐行分发。
func (d *Driver) processBatch(ctx context.Context, startRow int) (rawRead, processed int, failedRows, conflictRows []RowIssue, err error) {
	var (
		instrRows []map[string]string
		trackRows []map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := d.instructions.ReadRows(gctx, startRow, d.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("读取指令分片失败: %w", err)
		}
		instrRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := d.tracking.ReadRows(gctx, startRow, d.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("读取跟踪分片失败: %w", err)
		}
		trackRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, nil, nil, err
	}

	rawRead = len(instrRows)
	if rawRead == 0 {
		return 0, 0, nil, nil, nil
	}

	existing := make([]record.ExistingOrder, 0, len(trackRows))
	for _, row := range trackRows {
		if record.RowIsEmpty(row) {
			continue
		}
		existing = append(existing, record.ParseExistingOrder(row))
	}

	for i, row := range instrRows {
		rowNumber := startRow + i
		if record.RowIsEmpty(row) {
			continue
		}
		processed++

		outcome := d.processRow(ctx, rowNumber, row, existing)
		d.reporter.Queue(rowNumber, outcome.Status)

		switch outcome.Kind {
		case KindFailed:
			failedRows = append(failedRows, RowIssue{RowNumber: rowNumber, Reason: outcome.Reason})
		case KindConflict:
			conflictRows = append(conflictRows, RowIssue{
				RowNumber: rowNumber,
				Reason:    fmt.Sprintf("%d matching orders", outcome.Candidates),
			})
		}

		d.audit.RecordRowOutcome(ctx, audit.RowOutcomePayload{
			RowNumber: rowNumber,
			Ticker:    row[record.ColTicker],
			Action:    row[record.ColAction],
			Kind:      string(outcome.Kind),
			Status:    outcome.Status,
			Reason:    outcome.Reason,
		})

		if d.cfg.RowPause > 0 {
			if err := d.sleep(ctx, d.cfg.RowPause); err != nil {
				d.reporter.Flush(ctx)
				return rawRead, processed, failedRows, conflictRows, err
			}
		}
	}

	d.reporter.Flush(ctx)
	return rawRead, processed, failedRows, conflictRows, nil
}

// processRow 处理单行指令，行内 panic 转换为失败状态而不是中断整轮。
func (d *Driver) processRow(ctx context.Context, rowNumber int, row map[string]string, existing []record.ExistingOrder) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("处理行时发生 panic",
				zap.Int("row", rowNumber), zap.Any("panic", r))
			out = failed(fmt.Sprintf("❌ exception: %v", r), fmt.Sprint(r))
		}
	}()

	instr, err := record.ParseInstruction(rowNumber, row, d.defaultExchange)
	if err != nil {
		if errors.Is(err, record.ErrMissingField) {
			return failed("❌ MISSING FIELD", "Missing TICKER / TYPE / ACTION")
		}
		return failed(fmt.Sprintf("❌ exception: %v", err), err.Error())
	}

	return d.dispatcher.Dispatch(ctx, instr, existing)
}

func toAuditIssues(issues []RowIssue) []audit.RowIssue {
	if len(issues) == 0 {
		return nil
	}
	out := make([]audit.RowIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, audit.RowIssue{RowNumber: issue.RowNumber, Reason: issue.Reason})
	}
	return out
}
