package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "gtt"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("sheets.credentials_file", "creds.json")
	v.SetDefault("sheets.max_calls_per_minute", 55)
	v.SetDefault("sheets.retry.max_attempts", 6)
	v.SetDefault("sheets.retry.base_delay", "600ms")
	v.SetDefault("sheets.retry.max_delay", "30s")

	v.SetDefault("broker.default_exchange", "NSE")
	v.SetDefault("broker.max_calls_per_minute", 180)
	v.SetDefault("broker.retry.max_attempts", 5)
	v.SetDefault("broker.retry.base_delay", "1s")
	v.SetDefault("broker.retry.max_delay", "30s")

	// engine.batch_size 故意没有默认值：缺失即为启动错误。
	v.SetDefault("engine.price_buffer_pct", 0.5)
	v.SetDefault("engine.price_tolerance", 0.01)
	v.SetDefault("engine.preflight_cell", "K1")
	v.SetDefault("engine.row_pause", "100ms")
	v.SetDefault("engine.batch_pause", "1s")
	v.SetDefault("engine.empty_batch_limit", 3)

	v.SetDefault("database.path", "data/gtt_sync.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
