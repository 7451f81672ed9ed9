package trend

import (
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/pkg/config"
)

var log = logrus.WithField("component", "trend")

// Evaluate 对一个 K 线窗口计算趋势信号
// 窗口必须按时间升序（最旧在前）；数据不足或配置异常时返回“无趋势”，从不报错
func Evaluate(instID string, pc *config.PairConfig, candles []domain.Candle) domain.TrendSignal {
	closes := domain.Closes(candles)
	if len(closes) == 0 {
		log.Warnf("%s 没有可用的收盘价", instID)
		return domain.TrendSignal{}
	}

	switch pc.Strategy {
	case config.StrategySingleEMA:
		return evalSingleEMA(instID, pc, closes)
	default:
		return evalDualEMA(instID, pc, closes)
	}
}

// evalSingleEMA 单参考 EMA：收盘价在 EMA 上方为多头，下方为空头
// 周期 0 是“关闭趋势过滤”的哨兵值：双向都放行
func evalSingleEMA(instID string, pc *config.PairConfig, closes []float64) domain.TrendSignal {
	if pc.EMAPeriod == 0 {
		log.Infof("%s ema_period 为 0，允许双向挂单", instID)
		return domain.TrendSignal{Bullish: true, Bearish: true}
	}
	if len(closes) < pc.EMAPeriod {
		log.Warnf("%s K 线不足以计算 EMA：需要 %d，实际 %d", instID, pc.EMAPeriod, len(closes))
		return domain.TrendSignal{}
	}

	series := EMASeries(closes, pc.EMAPeriod)
	ema := series[len(series)-1]
	last := closes[len(closes)-1]

	sig := domain.TrendSignal{
		Bullish: last > ema,
		Bearish: last < ema,
		EMA:     ema,
	}
	log.Infof("%s Single EMA(%d): %.6f, Price: %.6f. Bullish: %v, Bearish: %v",
		instID, pc.EMAPeriod, ema, last, sig.Bullish, sig.Bearish)
	return sig
}

// evalDualEMA 双 EMA 趋势判断
// 多头：close > 短EMA > 长EMA 且分离度超过阈值；空头为镜像条件
// 确认深度 N>1 时，前 N-1 根还必须保持同样的排列（分离度只看当前这根）
func evalDualEMA(instID string, pc *config.PairConfig, closes []float64) domain.TrendSignal {
	if pc.EMALongPeriod == 0 {
		// 哨兵值：不区分方向，双向挂单
		log.Infof("%s ema_long_period 为 0，允许双向挂单", instID)
		return domain.TrendSignal{Bullish: true, Bearish: true}
	}
	if pc.EMAShortPeriod <= 0 {
		log.Warnf("%s ema_short_period 未配置，无法判断趋势", instID)
		return domain.TrendSignal{}
	}
	if pc.EMAShortPeriod >= pc.EMALongPeriod {
		log.Warnf("%s ema_short_period (%d) 必须小于 ema_long_period (%d)，无法判断趋势",
			instID, pc.EMAShortPeriod, pc.EMALongPeriod)
		return domain.TrendSignal{}
	}
	if len(closes) < pc.EMALongPeriod || len(closes) < pc.TrendConfirmationCandles {
		log.Warnf("%s K 线不足以计算双 EMA 或确认趋势：需要 %d，实际 %d",
			instID, maxInt(pc.EMALongPeriod, pc.TrendConfirmationCandles), len(closes))
		return domain.TrendSignal{}
	}

	emaShort := EMASeries(closes, pc.EMAShortPeriod)
	emaLong := EMASeries(closes, pc.EMALongPeriod)

	n := len(closes)
	price := closes[n-1]
	curShort := emaShort[n-1]
	curLong := emaLong[n-1]

	sig := domain.TrendSignal{EMAShort: curShort, EMALong: curLong}

	// 多头：金叉排列 + 分离度
	bullishNow := price > curShort && curShort > curLong &&
		(curShort-curLong)/curLong > pc.MinEMASeparationPct
	if bullishNow && confirmOrdering(closes, emaShort, emaLong, pc.TrendConfirmationCandles, true) {
		sig.Bullish = true
	}

	// 空头：死叉排列 + 分离度（分母用较慢的 EMA）
	bearishNow := price < curShort && curShort < curLong &&
		(curLong-curShort)/curLong > pc.MinEMASeparationPct
	if bearishNow && confirmOrdering(closes, emaShort, emaLong, pc.TrendConfirmationCandles, false) {
		sig.Bearish = true
	}

	log.Infof("%s Dual EMA: Short(%d): %.6f, Long(%d): %.6f, Price: %.6f. Bullish: %v, Bearish: %v",
		instID, pc.EMAShortPeriod, curShort, pc.EMALongPeriod, curLong, price, sig.Bullish, sig.Bearish)
	return sig
}

// confirmOrdering 检查前 confirm-1 根 K 线是否保持同样的排列
// 历史 K 线只检查基本排列，不检查分离度，避免过于严格
func confirmOrdering(closes, emaShort, emaLong []float64, confirm int, bullish bool) bool {
	n := len(closes)
	for i := 1; i < confirm; i++ {
		idx := n - 1 - i
		if idx < 0 {
			return false
		}
		price := closes[idx]
		s := emaShort[idx]
		l := emaLong[idx]
		if bullish {
			if !(price > s && s > l) {
				return false
			}
		} else {
			if !(price < s && s < l) {
				return false
			}
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
