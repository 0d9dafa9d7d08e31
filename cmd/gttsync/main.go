package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gtt-sync/internal/app"
	"gtt-sync/internal/config"
	"gtt-sync/internal/log"
	"gtt-sync/internal/store"
)

func main() {
	var (
		configPath   string
		sheetID      string
		sheetName    string
		marketOrders bool
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&sheetID, "sheet-id", "", "覆盖配置中的指令表格 ID")
	flag.StringVar(&sheetName, "sheet-name", "", "覆盖配置中的指令工作表名")
	flag.BoolVar(&marketOrders, "market-orders", false, "处理市价单而不是条件单")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	syncApp := app.New(cfg, logger, sqliteStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := syncApp.Run(ctx, app.Options{
		SheetID:      sheetID,
		SheetName:    sheetName,
		MarketOrders: marketOrders,
	}); err != nil {
		logger.Error("同步运行异常", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("同步已完成")
}
