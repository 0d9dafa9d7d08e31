// Package report 负责把每行处理结果回写到指令表的 STATUS 列。
// 状态先在内存中聚合，整批一次写回，减少表格侧调用次数。
package report

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"gtt-sync/internal/record"
	"gtt-sync/internal/sheet"
)

// statusSheet 是回写状态所需的最小表格能力。
type statusSheet interface {
	Header(ctx context.Context) ([]string, error)
	UpdateCell(ctx context.Context, row, col int, value string) error
	BatchUpdate(ctx context.Context, updates []sheet.CellUpdate) error
	SetHeaderColumn(col int, name string)
}

// StatusReporter 管理一个工作表的 STATUS 列。
// 同一行多次排队时后写的覆盖先写的。
type StatusReporter struct {
	ws      statusSheet
	col     int
	pending map[int]string
	logger  *zap.Logger
}

// NewStatusReporter 定位 STATUS 列，表头中不存在时在末尾创建。
func NewStatusReporter(ctx context.Context, ws statusSheet, logger *zap.Logger) (*StatusReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	header, err := ws.Header(ctx)
	if err != nil {
		return nil, err
	}

	col := 0
	for i, name := range header {
		if name == record.ColStatus {
			col = i + 1
			break
		}
	}
	if col == 0 {
		col = len(header) + 1
		if err := ws.UpdateCell(ctx, 1, col, record.ColStatus); err != nil {
			return nil, err
		}
		ws.SetHeaderColumn(col, record.ColStatus)
		logger.Info("STATUS 列不存在，已在表头末尾创建", zap.Int("column", col))
	}

	return &StatusReporter{
		ws:      ws,
		col:     col,
		pending: make(map[int]string),
		logger:  logger,
	}, nil
}

// Column 返回 STATUS 列的 1-based 列号。
func (r *StatusReporter) Column() int {
	return r.col
}

// Queue 记录某一行的状态文本，Flush 之前不产生任何网络调用。
func (r *StatusReporter) Queue(rowNumber int, status string) {
	r.pending[rowNumber] = status
}

// Flush 把积压的状态一次性写回表格。
// 写回失败只记日志不阻断主流程，积压无论成败都会清空。
func (r *StatusReporter) Flush(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}
	defer func() {
		r.pending = make(map[int]string)
	}()

	rows := make([]int, 0, len(r.pending))
	for row := range r.pending {
		rows = append(rows, row)
	}
	sort.Ints(rows)

	updates := make([]sheet.CellUpdate, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, sheet.CellUpdate{
			Row:   row,
			Col:   r.col,
			Value: r.pending[row],
		})
	}

	if err := r.ws.BatchUpdate(ctx, updates); err != nil {
		r.logger.Error("状态回写失败", zap.Int("cells", len(updates)), zap.Error(err))
		return
	}
	r.logger.Debug("状态回写完成", zap.Int("cells", len(updates)))
}
