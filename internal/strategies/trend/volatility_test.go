package trend

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/pkg/config"
)

func flatCandles(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Ts: int64(i), Open: price, High: price, Low: price, Close: price}
	}
	return out
}

// rangedCandles 每根 K 线围绕 close 上下对称波动 spread
func rangedCandles(n int, price, spread float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Ts:    int64(i),
			Open:  price,
			High:  price + spread,
			Low:   price - spread,
			Close: price,
		}
	}
	return out
}

// 60 根无波动 K 线：ATR=0、振幅=0、offset=0，多空目标价都等于标记价
func TestFlatCandlesZeroOffset(t *testing.T) {
	candles := flatCandles(61, 100)
	pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: 2, Blend: config.BlendMean}

	if atr := ATR(candles, 60); atr != 0 {
		t.Fatalf("无波动 ATR 应为 0, got=%v", atr)
	}
	if amp := AverageAmplitude(candles, 60); amp != 0 {
		t.Fatalf("无波动振幅应为 0, got=%v", amp)
	}

	offset := Offset(pc, candles, 100)
	if offset != 0 {
		t.Fatalf("无波动 offset 应为 0, got=%v", offset)
	}

	long, short := Targets(100, offset)
	if long != 100 || short != 100 {
		t.Fatalf("offset=0 时目标价应等于标记价: long=%v short=%v", long, short)
	}
}

func TestATRInsufficientWindow(t *testing.T) {
	if atr := ATR(flatCandles(10, 100), 60); atr != 0 {
		t.Fatalf("窗口不足时 ATR 应为 0, got=%v", atr)
	}
	if amp := AverageAmplitude(flatCandles(10, 100), 60); amp != 0 {
		t.Fatalf("窗口不足时振幅应为 0, got=%v", amp)
	}
}

func TestATRKnownValue(t *testing.T) {
	// 每根 K 线 high-low=2，close 不变：TR 恒为 2，ATR=2
	candles := rangedCandles(61, 100, 1)
	if atr := ATR(candles, 60); math.Abs(atr-2) > 1e-9 {
		t.Fatalf("ATR got=%v want=2", atr)
	}
	// 振幅 = (high-low)/close*100 = 2%
	if amp := AverageAmplitude(candles, 60); math.Abs(amp-2) > 1e-9 {
		t.Fatalf("振幅 got=%v want=2", amp)
	}
}

// 旧公式逐项对账：(振幅% + ATR/价格)/2 * 乘数
func TestOffsetMeanBlend(t *testing.T) {
	candles := rangedCandles(61, 100, 1)
	pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: 2, Blend: config.BlendMean}

	// 振幅=2, ATR/价格=0.02 -> (2+0.02)/2*2 = 2.02
	offset := Offset(pc, candles, 100)
	if math.Abs(offset-2.02) > 1e-9 {
		t.Fatalf("mean blend got=%v want=2.02", offset)
	}
}

func TestOffsetMinBlendWithFloor(t *testing.T) {
	candles := rangedCandles(61, 100, 1)
	pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: 1, Blend: config.BlendMin}

	// min(2%, 2%) * 1 = 2
	offset := Offset(pc, candles, 100)
	if math.Abs(offset-2) > 1e-9 {
		t.Fatalf("min blend got=%v want=2", offset)
	}

	pc.OffsetFloorPct = 5
	if offset := Offset(pc, candles, 100); offset != 5 {
		t.Fatalf("floor 应托底: got=%v want=5", offset)
	}
}

// offset 对波动幅度单调不减
func TestOffsetMonotoneInSpread(t *testing.T) {
	pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: 2, Blend: config.BlendMean}
	small := Offset(pc, rangedCandles(61, 100, 0.5), 100)
	large := Offset(pc, rangedCandles(61, 100, 2), 100)
	if large < small {
		t.Fatalf("波动更大 offset 不应更小: small=%v large=%v", small, large)
	}
}

// 属性：offset 永远非负，且多空目标价对标记价百分比对称
func TestPropertyOffsetSymmetry(t *testing.T) {
	property := func(spreadRaw float64, priceRaw float64, mult float64) bool {
		// 输入域约束
		spread := math.Abs(spreadRaw)
		if spread > 1000 || math.IsNaN(spread) || math.IsInf(spread, 0) {
			return true
		}
		price := 1 + math.Abs(priceRaw)
		if price > 1e6 || math.IsNaN(price) || math.IsInf(price, 0) {
			return true
		}
		multiplier := 0.1 + math.Abs(mult)
		if multiplier > 100 {
			return true
		}

		pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: multiplier, Blend: config.BlendMean}
		offset := Offset(pc, rangedCandles(61, price, spread), price)
		if offset < 0 {
			return false
		}

		long, short := Targets(price, offset)
		// (mark-long) 与 (short-mark) 必须相等（百分比对称）
		return math.Abs((price-long)-(short-price)) < 1e-6*price
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("属性测试失败: %v", err)
	}
}

// 标记价非法时不计算 offset，杜绝除零
func TestOffsetZeroMarkPrice(t *testing.T) {
	pc := &config.PairConfig{ATRPeriod: 60, ValueMultiplier: 2, Blend: config.BlendMean}
	if offset := Offset(pc, rangedCandles(61, 100, 1), 0); offset != 0 {
		t.Fatalf("标记价为 0 时 offset 应为 0, got=%v", offset)
	}
}
