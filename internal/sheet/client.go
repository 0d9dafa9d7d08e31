// Package sheet 封装指令表与跟踪表所在的 Google Sheets 访问。
// 所有读写都经过共享的限流重试层，表格侧的配额独立于券商侧。
package sheet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"gtt-sync/internal/call"
	"gtt-sync/internal/config"
)

// Client 持有表格服务连接与调用预算。
type Client struct {
	svc    *sheets.Service
	caller *call.Caller
	logger *zap.Logger
}

// NewClient 使用服务账号凭据构造客户端。
func NewClient(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化 Sheets 服务失败: %w", err)
	}

	caller := call.New(call.NewWindow(cfg.MaxCallsPerMin), cfg.Retry, IsRetryable, logger)

	return &Client{
		svc:    svc,
		caller: caller,
		logger: logger,
	}, nil
}

// Worksheet 打开一个工作表并缓存表头。
func (c *Client) Worksheet(ctx context.Context, ref config.WorksheetRef) (*Worksheet, error) {
	ws := &Worksheet{
		client:        c,
		spreadsheetID: ref.SpreadsheetID,
		tab:           ref.Tab,
	}
	if _, err := ws.Header(ctx); err != nil {
		return nil, fmt.Errorf("读取工作表 %q 表头失败: %w", ref.Tab, err)
	}
	c.logger.Info("工作表已就绪", zap.String("tab", ref.Tab))
	return ws, nil
}

// ReadCell 直接读取任意工作表的单个单元格，不加载表头。
func (c *Client) ReadCell(ctx context.Context, spreadsheetID, tab, cell string) (string, error) {
	var resp *sheets.ValueRange
	err := c.caller.Do(ctx, "read_cell", func() error {
		r, err := c.svc.Spreadsheets.Values.
			Get(spreadsheetID, fmt.Sprintf("'%s'!%s", tab, cell)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return cellString(resp.Values[0][0]), nil
}

// IsRetryable 判断 Sheets API 错误是否为瞬时故障。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || (apiErr.Code >= 500 && apiErr.Code <= 599)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset")
}
