package trend

import (
	"math"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/pkg/config"
)

// ATR 平均真实波幅：最近 period 对相邻 K 线的 true range 均值
// 窗口不足 period+1 根时返回 0
func ATR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}
	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

// AverageAmplitude 平均振幅：最近 period 根 K 线 (high-low)/close*100 的均值
// 窗口不足时返回 0
func AverageAmplitude(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	sum := 0.0
	count := 0
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		if c.Close <= 0 {
			continue
		}
		sum += (c.High - c.Low) / c.Close * 100
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Offset 计算波动率挂单偏移（百分比，非负，双向对称使用）
// blend=mean 完整保留旧公式：(振幅% + ATR/价格)/2 * 乘数
// blend=min 先把 ATR 比值归一为百分比再取较小者：min(振幅%, ATR/价格*100) * 乘数
// offset_floor_pct > 0 时作为下限
func Offset(pc *config.PairConfig, candles []domain.Candle, markPrice float64) float64 {
	if markPrice <= 0 {
		return 0
	}

	atr := ATR(candles, pc.ATRPeriod)
	amplitude := AverageAmplitude(candles, pc.ATRPeriod)
	atrRatio := atr / markPrice

	var offset float64
	switch pc.Blend {
	case config.BlendMin:
		offset = math.Min(amplitude, atrRatio*100) * pc.ValueMultiplier
	default:
		offset = (amplitude + atrRatio) / 2 * pc.ValueMultiplier
	}

	if pc.OffsetFloorPct > 0 && offset < pc.OffsetFloorPct {
		offset = pc.OffsetFloorPct
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

// Targets 由标记价和偏移计算多/空目标挂单价
func Targets(markPrice, offsetPct float64) (longTarget, shortTarget float64) {
	longTarget = markPrice * (1 - offsetPct/100)
	shortTarget = markPrice * (1 + offsetPct/100)
	return longTarget, shortTarget
}
