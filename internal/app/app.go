// Package app 聚合全部依赖，按 CLI 选项驱动一次完整的同步流程。
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gtt-sync/internal/audit"
	"gtt-sync/internal/broker"
	"gtt-sync/internal/call"
	"gtt-sync/internal/config"
	"gtt-sync/internal/engine"
	"gtt-sync/internal/report"
	"gtt-sync/internal/sheet"
	"gtt-sync/internal/store"
)

// Options 是命令行层面的运行选项。
type Options struct {
	// SheetID/SheetName 覆盖配置中的指令表位置，为空时用配置值。
	SheetID   string
	SheetName string
	// MarketOrders 为 true 时走市价单模式，绕过条件单语义。
	MarketOrders bool
}

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 执行一次同步：对账（或市价单）流程、镜像表刷新、收尾校验。
func (a *App) Run(ctx context.Context, opts Options) error {
	a.logger.Info("同步系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Bool("market_orders", opts.MarketOrders),
	)

	instrRef := a.cfg.Sheets.Instructions
	if opts.SheetID != "" {
		instrRef.SpreadsheetID = opts.SheetID
	}
	if opts.SheetName != "" {
		instrRef.Tab = opts.SheetName
	}

	sheetClient, err := sheet.NewClient(ctx, a.cfg.Sheets, a.logger)
	if err != nil {
		return err
	}

	instructions, err := sheetClient.Worksheet(ctx, instrRef)
	if err != nil {
		return err
	}

	brokerCaller := call.New(
		call.NewWindow(a.cfg.Broker.MaxCallsPerMin),
		a.cfg.Broker.Retry,
		broker.IsRetryable,
		a.logger,
	)
	kite, err := broker.NewKite(a.cfg.Broker, brokerCaller, a.logger)
	if err != nil {
		return err
	}
	if err := kite.ValidateSession(ctx); err != nil {
		return fmt.Errorf("券商会话校验失败: %w", err)
	}

	auditSvc, err := audit.NewService(a.store, a.logger)
	if err != nil {
		return err
	}

	reporter, err := report.NewStatusReporter(ctx, instructions, a.logger)
	if err != nil {
		return err
	}

	if opts.MarketOrders {
		runner := engine.NewMarketRunner(
			instructions, reporter, kite,
			a.cfg.Engine, a.cfg.Broker.DefaultExchange, a.logger,
		)
		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		auditSvc.RecordPassSummary(ctx, marketSummaryPayload(summary))
	} else {
		tracking, err := sheetClient.Worksheet(ctx, a.cfg.Sheets.Tracking)
		if err != nil {
			return err
		}

		dispatcher := engine.NewDispatcher(
			kite, a.cfg.Engine.PriceBufferPct, a.cfg.Engine.PriceTolerance, a.logger,
		)
		driver := engine.NewDriver(
			instructions, tracking, dispatcher, reporter, auditSvc,
			a.cfg.Engine, a.cfg.Broker.DefaultExchange, a.logger,
		)
		if _, err := driver.Run(ctx); err != nil {
			return err
		}
	}

	a.refreshMirror(ctx, sheetClient, kite)
	a.runPostChecks(ctx, sheetClient, instrRef.SpreadsheetID)

	return nil
}

// refreshMirror 把券商侧在途触发单重写到镜像表，失败只记日志。
func (a *App) refreshMirror(ctx context.Context, client *sheet.Client, kite *broker.Kite) {
	ref := a.cfg.Sheets.Mirror
	if ref.SpreadsheetID == "" || ref.Tab == "" {
		a.logger.Info("未配置镜像表，跳过刷新")
		return
	}

	mirror, err := client.Worksheet(ctx, ref)
	if err != nil {
		a.logger.Error("打开镜像表失败，跳过刷新", zap.Error(err))
		return
	}
	engine.RefreshMirror(ctx, kite, mirror, a.logger)
}

// runPostChecks 读取配置的校验单元格，校验结果只进日志。
func (a *App) runPostChecks(ctx context.Context, client *sheet.Client, spreadsheetID string) {
	if len(a.cfg.Sheets.PostChecks) == 0 {
		return
	}

	checks := make([]engine.Check, 0, len(a.cfg.Sheets.PostChecks))
	for _, c := range a.cfg.Sheets.PostChecks {
		checks = append(checks, engine.Check{Tab: c.Tab, Cell: c.Cell})
	}

	reader := postCheckReader{client: client, spreadsheetID: spreadsheetID}
	engine.RunPostChecks(ctx, reader, checks, a.logger)
}

func marketSummaryPayload(summary engine.Summary) audit.PassSummaryPayload {
	payload := audit.PassSummaryPayload{
		RowsProcessed: summary.RowsProcessed,
		Duration:      summary.Duration,
	}
	for _, issue := range summary.Failed {
		payload.FailedRows = append(payload.FailedRows, audit.RowIssue{
			RowNumber: issue.RowNumber,
			Reason:    issue.Reason,
		})
	}
	return payload
}

type postCheckReader struct {
	client        *sheet.Client
	spreadsheetID string
}

func (r postCheckReader) ReadCell(ctx context.Context, tab, cell string) (string, error) {
	return r.client.ReadCell(ctx, r.spreadsheetID, tab, cell)
}
