package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// WorksheetRef 指向某个表格中的一个工作表。
type WorksheetRef struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	Tab           string `mapstructure:"tab"`
}

// CellRef 指向某个工作表中的单元格，用于收尾校验。
type CellRef struct {
	Tab  string `mapstructure:"tab"`
	Cell string `mapstructure:"cell"`
}

// SheetsConfig 描述指令表与跟踪表的访问方式。
type SheetsConfig struct {
	CredentialsFile string       `mapstructure:"credentials_file"`
	MaxCallsPerMin  int          `mapstructure:"max_calls_per_minute"`
	Retry           RetryConfig  `mapstructure:"retry"`
	Instructions    WorksheetRef `mapstructure:"instructions"`
	Tracking        WorksheetRef `mapstructure:"tracking"`
	Mirror          WorksheetRef `mapstructure:"mirror"`
	PostChecks      []CellRef    `mapstructure:"post_checks"`
}

// BrokerConfig 描述券商连接信息。
type BrokerConfig struct {
	APIKey          string      `mapstructure:"api_key"`
	AccessToken     string      `mapstructure:"access_token"`
	AccessTokenFile string      `mapstructure:"access_token_file"`
	DefaultExchange string      `mapstructure:"default_exchange"`
	MaxCallsPerMin  int         `mapstructure:"max_calls_per_minute"`
	Retry           RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// EngineConfig 控制对账引擎行为。
type EngineConfig struct {
	// BatchSize 没有默认值：缺失或非正数会在启动时直接失败。
	BatchSize      int           `mapstructure:"batch_size"`
	PriceBufferPct float64       `mapstructure:"price_buffer_pct"`
	PriceTolerance float64       `mapstructure:"price_tolerance"`
	PreflightCell  string        `mapstructure:"preflight_cell"`
	RowPause       time.Duration `mapstructure:"row_pause"`
	BatchPause     time.Duration `mapstructure:"batch_pause"`
	EmptyBatchLim  int           `mapstructure:"empty_batch_limit"`
}

// DatabaseConfig 管理审计数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	if c.Sheets.CredentialsFile == "" {
		err = multierr.Append(err, errors.New("sheets.credentials_file 不能为空"))
	}
	if c.Sheets.MaxCallsPerMin <= 0 {
		err = multierr.Append(err, errors.New("sheets.max_calls_per_minute 必须大于0"))
	}
	err = multierr.Append(err, validateRetry("sheets.retry", c.Sheets.Retry))
	err = multierr.Append(err, validateWorksheet("sheets.instructions", c.Sheets.Instructions))
	err = multierr.Append(err, validateWorksheet("sheets.tracking", c.Sheets.Tracking))
	for i, check := range c.Sheets.PostChecks {
		if check.Tab == "" || check.Cell == "" {
			err = multierr.Append(err, fmt.Errorf("sheets.post_checks[%d] 需要同时提供 tab 与 cell", i))
		}
	}

	if c.Broker.APIKey == "" {
		err = multierr.Append(err, errors.New("broker.api_key 不能为空"))
	}
	if c.Broker.AccessToken == "" && c.Broker.AccessTokenFile == "" {
		err = multierr.Append(err, errors.New("broker.access_token 与 access_token_file 至少提供一个"))
	}
	if c.Broker.DefaultExchange == "" {
		err = multierr.Append(err, errors.New("broker.default_exchange 不能为空"))
	}
	if c.Broker.MaxCallsPerMin <= 0 {
		err = multierr.Append(err, errors.New("broker.max_calls_per_minute 必须大于0"))
	}
	err = multierr.Append(err, validateRetry("broker.retry", c.Broker.Retry))

	if c.Engine.BatchSize <= 0 {
		err = multierr.Append(err, errors.New("engine.batch_size 必须显式配置为正整数"))
	}
	if c.Engine.PriceBufferPct < 0 || c.Engine.PriceBufferPct > 5 {
		err = multierr.Append(err, errors.New("engine.price_buffer_pct 应位于[0,5]"))
	}
	if c.Engine.PriceTolerance <= 0 {
		err = multierr.Append(err, errors.New("engine.price_tolerance 必须大于0"))
	}
	if c.Engine.PreflightCell == "" {
		err = multierr.Append(err, errors.New("engine.preflight_cell 不能为空"))
	}
	if c.Engine.RowPause < 0 || c.Engine.BatchPause < 0 {
		err = multierr.Append(err, errors.New("engine.row_pause/batch_pause 不能为负"))
	}
	if c.Engine.EmptyBatchLim <= 0 {
		err = multierr.Append(err, errors.New("engine.empty_batch_limit 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func validateRetry(prefix string, r RetryConfig) error {
	var err error
	if r.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.max_attempts 必须大于0", prefix))
	}
	if r.BaseDelay <= 0 || r.MaxDelay <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.delay 必须为正", prefix))
	}
	if r.BaseDelay > r.MaxDelay {
		err = multierr.Append(err, fmt.Errorf("%s.base_delay 不能大于 max_delay", prefix))
	}
	return err
}

func validateWorksheet(prefix string, ref WorksheetRef) error {
	var err error
	if ref.SpreadsheetID == "" {
		err = multierr.Append(err, fmt.Errorf("%s.spreadsheet_id 不能为空", prefix))
	}
	if ref.Tab == "" {
		err = multierr.Append(err, fmt.Errorf("%s.tab 不能为空", prefix))
	}
	return err
}
