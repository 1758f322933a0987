package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"hft_bot/internal/models"
)

const (
	apiKeyENV    = "API_KEY"
	apiSecretENV = "API_SECRET"
)

// RiskLimits — иммутабельные пороги риска. Читаются один раз на старте.
type RiskLimits struct {
	MaxFundingRate    float64 `mapstructure:"max_funding_rate"`
	MaxPriceDeviation float64 `mapstructure:"max_price_deviation"`

	MaxPortfolioRisk     float64 `mapstructure:"max_portfolio_risk"`
	MaxPortfolioExposure float64 `mapstructure:"max_portfolio_exposure"`
	MaxSectorExposure    float64 `mapstructure:"max_sector_exposure"`
	TargetPortfolioBeta  float64 `mapstructure:"target_portfolio_beta"`
	BetaTolerance        float64 `mapstructure:"beta_tolerance"`

	BuyImbalanceThreshold  float64 `mapstructure:"buy_imbalance_threshold"`
	SellImbalanceThreshold float64 `mapstructure:"sell_imbalance_threshold"`
	VolumeImbalanceMult    float64 `mapstructure:"volume_imbalance_mult"`

	StopLossPct   float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`

	MaxLeverage    float64 `mapstructure:"max_leverage"`
	TargetLeverage float64 `mapstructure:"target_leverage"`
	MaxPnlPct      float64 `mapstructure:"max_pnl_pct"`

	RiskPerTrade float64 `mapstructure:"risk_per_trade"`
}

type Trading struct {
	OrderSpread     float64 `mapstructure:"order_spread"`
	PriceOffset     float64 `mapstructure:"price_offset"`
	OrderSize       float64 `mapstructure:"order_size"`
	TickSize        float64 `mapstructure:"tick_size"`
	InitialBalance  float64 `mapstructure:"initial_balance"`
	TradePercentage float64 `mapstructure:"trade_percentage"`

	TradeInterval time.Duration `mapstructure:"trade_interval"`
	ErrorWaitTime time.Duration `mapstructure:"error_wait_time"`
	APIRetryDelay time.Duration `mapstructure:"api_retry_delay"`

	// Dead-man's switch: таймаут в миллисекундах, как его ждёт биржа.
	DeadMansSwitchTimeoutMs int `mapstructure:"dead_mans_switch_timeout_ms"`
}

type Config struct {
	UseTestnet bool `mapstructure:"use_testnet"`

	// креды только из окружения, в файле им не место
	APIKey    string `mapstructure:"-"`
	APISecret string `mapstructure:"-"`

	Symbol           string   `mapstructure:"symbol"`
	Instruments      []string `mapstructure:"instruments"`
	AdditionalTopics []string `mapstructure:"additional_topics"`

	Trading Trading    `mapstructure:"trading"`
	Risk    RiskLimits `mapstructure:"risk"`

	Sectors map[string]string `mapstructure:"-"` // prefix -> sector, см. sectors.go

	Journal struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"journal"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Tracing struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"tracing"`
}

// BaseURL / WSURL — селектор testnet/mainnet.
func (c *Config) BaseURL() string {
	if c.UseTestnet {
		return "https://testnet.bitmex.com"
	}
	return "https://www.bitmex.com"
}

func (c *Config) WSURL() string {
	if c.UseTestnet {
		return "wss://testnet.bitmex.com/realtime"
	}
	return "wss://www.bitmex.com/realtime"
}

// NewConfig читает config.yaml (если есть) поверх дефолтов, затем окружение.
// Отсутствие кредов — фатально: без подписи движку делать нечего.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("HFT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// файла может не быть — работаем на дефолтах
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{Msg: "read config.yaml: " + err.Error()}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &models.ConfigError{Msg: "unmarshal config: " + err.Error()}
	}

	cfg.APIKey = os.Getenv(apiKeyENV)
	cfg.APISecret = os.Getenv(apiSecretENV)
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, &models.ConfigError{Msg: "API_KEY / API_SECRET are missing or empty"}
	}

	cfg.Sectors = loadSectors("sectors.yaml")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("use_testnet", true)
	v.SetDefault("symbol", "XBTUSD")
	v.SetDefault("instruments", []string{"XBTUSD", "ETHUSD"})
	v.SetDefault("additional_topics", []string{"trade", "liquidation"})

	v.SetDefault("trading.order_spread", 0.001)
	v.SetDefault("trading.price_offset", 0.001)
	v.SetDefault("trading.order_size", 100)
	v.SetDefault("trading.tick_size", 0.5)
	v.SetDefault("trading.initial_balance", 1000.0)
	v.SetDefault("trading.trade_percentage", 0.02)
	v.SetDefault("trading.trade_interval", time.Minute)
	v.SetDefault("trading.error_wait_time", 5*time.Second)
	v.SetDefault("trading.api_retry_delay", time.Second)
	v.SetDefault("trading.dead_mans_switch_timeout_ms", 3600000)

	v.SetDefault("risk.max_funding_rate", 0.01)
	v.SetDefault("risk.max_price_deviation", 0.05)
	v.SetDefault("risk.max_portfolio_risk", 0.05)
	v.SetDefault("risk.max_portfolio_exposure", 0.5)
	v.SetDefault("risk.max_sector_exposure", 0.2)
	v.SetDefault("risk.target_portfolio_beta", 1.0)
	v.SetDefault("risk.beta_tolerance", 0.1)
	v.SetDefault("risk.buy_imbalance_threshold", 0.6)
	v.SetDefault("risk.sell_imbalance_threshold", 0.4)
	v.SetDefault("risk.volume_imbalance_mult", 0.7)
	v.SetDefault("risk.stop_loss_pct", 0.02)
	v.SetDefault("risk.take_profit_pct", 0.03)
	v.SetDefault("risk.max_leverage", 10.0)
	v.SetDefault("risk.target_leverage", 5.0)
	v.SetDefault("risk.max_pnl_pct", 0.05)
	v.SetDefault("risk.risk_per_trade", 0.01)
}
