package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 策略名常量
const (
	StrategySingleEMA = "single_ema"
	StrategyDualEMA   = "dual_ema"
)

// 波动率 offset 混合方式
const (
	BlendMean = "mean"
	BlendMin  = "min"
)

// OKXConfig OKX API 配置
// 凭证不放在配置文件里，从环境变量读取（OKX_API_KEY / OKX_API_SECRET / OKX_API_PASSPHRASE）
type OKXConfig struct {
	APIKey     string `yaml:"-"`
	SecretKey  string `yaml:"-"`
	Passphrase string `yaml:"-"`
	BaseURL    string `yaml:"base_url"` // 默认 https://www.okx.com
	Demo       bool   `yaml:"demo"`     // 模拟盘（x-simulated-trading: 1）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// PairConfig 单个交易对的策略参数
type PairConfig struct {
	// Strategy 趋势策略：single_ema 或 dual_ema
	Strategy string `yaml:"strategy"`

	// ====== dual_ema ======
	EMAShortPeriod           int     `yaml:"ema_short_period"`
	EMALongPeriod            int     `yaml:"ema_long_period"` // 0 = 不区分方向（双向挂单）
	MinEMASeparationPct      float64 `yaml:"min_ema_separation_pct"`
	TrendConfirmationCandles int     `yaml:"trend_confirmation_candles"`

	// ====== single_ema ======
	EMAPeriod int `yaml:"ema_period"` // 0 = 不区分方向（双向挂单）

	// ====== 波动率 offset ======
	ATRPeriod       int     `yaml:"atr_period"`
	ValueMultiplier float64 `yaml:"value_multiplier"`
	Blend           string  `yaml:"blend"`            // mean 或 min
	OffsetFloorPct  float64 `yaml:"offset_floor_pct"` // 0 = 不设下限

	// ====== 挂单金额（USDT 名义额）======
	LongAmountUSDT  float64 `yaml:"long_amount_usdt"`
	ShortAmountUSDT float64 `yaml:"short_amount_usdt"`

	// ====== K 线窗口 ======
	Bar         string `yaml:"bar"`
	CandleLimit int    `yaml:"candle_limit"`
}

// Validate 校验并填充单个交易对的默认值
func (c *PairConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("pair config 不能为空")
	}

	if strings.TrimSpace(c.Strategy) == "" {
		c.Strategy = StrategyDualEMA
	}
	switch c.Strategy {
	case StrategySingleEMA, StrategyDualEMA:
	default:
		return fmt.Errorf("未知策略: %s", c.Strategy)
	}

	if c.MinEMASeparationPct <= 0 {
		c.MinEMASeparationPct = 0.001 // 0.1%
	}
	if c.TrendConfirmationCandles <= 0 {
		c.TrendConfirmationCandles = 1
	}

	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 60
	}
	if c.ValueMultiplier <= 0 {
		c.ValueMultiplier = 2
	}
	if strings.TrimSpace(c.Blend) == "" {
		c.Blend = BlendMean
	}
	switch c.Blend {
	case BlendMean, BlendMin:
	default:
		return fmt.Errorf("未知 blend: %s", c.Blend)
	}
	if c.OffsetFloorPct < 0 {
		return fmt.Errorf("offset_floor_pct 不能为负")
	}

	if c.LongAmountUSDT <= 0 {
		c.LongAmountUSDT = 20
	}
	if c.ShortAmountUSDT <= 0 {
		c.ShortAmountUSDT = 20
	}

	if strings.TrimSpace(c.Bar) == "" {
		c.Bar = "1m"
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = 241
	}

	// 窗口必须覆盖最长回看：ATR 需要 period+1 根，双 EMA 需要长周期+确认深度
	need := c.ATRPeriod + 1
	if c.Strategy == StrategyDualEMA && c.EMALongPeriod+c.TrendConfirmationCandles > need {
		need = c.EMALongPeriod + c.TrendConfirmationCandles
	}
	if c.Strategy == StrategySingleEMA && c.EMAPeriod > need {
		need = c.EMAPeriod
	}
	if c.CandleLimit < need {
		return fmt.Errorf("candle_limit=%d 小于所需回看 %d", c.CandleLimit, need)
	}

	return nil
}

// MinCandles 返回本交易对一个周期所需的最少 K 线数量
func (c *PairConfig) MinCandles() int {
	need := c.ATRPeriod + 1
	if c.Strategy == StrategyDualEMA && c.EMALongPeriod+c.TrendConfirmationCandles > need {
		need = c.EMALongPeriod + c.TrendConfirmationCandles
	}
	if c.Strategy == StrategySingleEMA && c.EMAPeriod > need {
		need = c.EMAPeriod
	}
	return need
}

// Config 应用配置（启动时加载一次，之后只读）
type Config struct {
	OKX             OKXConfig              `yaml:"okx"`
	Leverage        int                    `yaml:"leverage"`
	MonitorInterval int                    `yaml:"monitor_interval"` // 每轮之间的休眠（秒）
	BatchSize       int                    `yaml:"batch_size"`
	FeishuWebhook   string                 `yaml:"feishu_webhook"`
	StatusAddr      string                 `yaml:"status_addr"` // 为空则不启动状态服务
	Log             LogConfig              `yaml:"log"`
	TradingPairs    map[string]*PairConfig `yaml:"trading_pairs"`
}

// Validate 校验并填充默认值
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config 不能为空")
	}

	if strings.TrimSpace(c.OKX.BaseURL) == "" {
		c.OKX.BaseURL = "https://www.okx.com"
	}
	if c.Leverage <= 0 {
		c.Leverage = 10
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 60
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}

	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 7
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 7
	}

	if len(c.TradingPairs) == 0 {
		return fmt.Errorf("trading_pairs 不能为空")
	}
	for instID, pc := range c.TradingPairs {
		if pc == nil {
			pc = &PairConfig{}
			c.TradingPairs[instID] = pc
		}
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("trading_pairs[%s]: %w", instID, err)
		}
	}

	return nil
}

// LoadFromFile 从 YAML 文件加载配置，并从环境变量补充 API 凭证
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.OKX.APIKey = strings.TrimSpace(os.Getenv("OKX_API_KEY"))
	cfg.OKX.SecretKey = strings.TrimSpace(os.Getenv("OKX_API_SECRET"))
	cfg.OKX.Passphrase = strings.TrimSpace(os.Getenv("OKX_API_PASSPHRASE"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InstIDs 返回配置的所有合约 ID
func (c *Config) InstIDs() []string {
	ids := make([]string, 0, len(c.TradingPairs))
	for id := range c.TradingPairs {
		ids = append(ids, id)
	}
	return ids
}
