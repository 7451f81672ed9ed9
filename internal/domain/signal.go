package domain

// Side 订单买卖方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PosSide 返回该方向对应的持仓方向（开多/开空）
func (s Side) PosSide() string {
	if s == SideBuy {
		return "long"
	}
	return "short"
}

// TrendSignal 一轮计算出的趋势判断，不跨周期保留
type TrendSignal struct {
	Bullish bool
	Bearish bool

	// 双 EMA 策略填充
	EMAShort float64
	EMALong  float64
	// 单 EMA 策略填充
	EMA float64
}

// OrderIntent 单轮内生成并消费的挂单意图
type OrderIntent struct {
	InstID       string
	Side         Side
	TargetPrice  float64
	NotionalUSDT float64
}
