package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/internal/exchange"
	"github.com/swapbot/goswap/internal/strategies/trend"
	"github.com/swapbot/goswap/pkg/config"
)

var tradingLog = logrus.WithField("component", "trading")

// Notifier 外部告警通道（尽力而为，失败只记日志）
type Notifier interface {
	Notify(message string)
}

// CycleReport 一个合约一轮处理的结果，供状态服务展示
type CycleReport struct {
	InstID      string    `json:"instId"`
	Time        time.Time `json:"time"`
	MarkPrice   float64   `json:"markPrice"`
	Bullish     bool      `json:"bullish"`
	Bearish     bool      `json:"bearish"`
	OffsetPct   float64   `json:"offsetPct"`
	LongTarget  float64   `json:"longTarget"`
	ShortTarget float64   `json:"shortTarget"`
	Skipped     string    `json:"skipped,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
}

// TradingService 订单生命周期管理：撤单、杠杆、换算、挂单
// 每轮对一个合约：快照 -> 信号+偏移 -> 全撤 -> 按趋势挂多/空限价单
// 先撤后挂保证任意时刻每个合约至多一张多单和一张空单，不会残留上一轮的过期价位
type TradingService struct {
	ex         exchange.Exchange
	registry   *InstrumentRegistry
	marketData *MarketDataService
	notifier   Notifier
	leverage   int
	mgnMode    string
}

// NewTradingService 创建交易服务
func NewTradingService(ex exchange.Exchange, registry *InstrumentRegistry, marketData *MarketDataService, notifier Notifier, leverage int) *TradingService {
	return &TradingService{
		ex:         ex,
		registry:   registry,
		marketData: marketData,
		notifier:   notifier,
		leverage:   leverage,
		mgnMode:    "isolated",
	}
}

// RoundPriceToTick 把价格取整到 tick size 的整数倍（银行家舍入，与 tick 同小数位数）
func RoundPriceToTick(price float64, tickSize decimal.Decimal) string {
	decimals := int32(0)
	if exp := tickSize.Exponent(); exp < 0 {
		decimals = -exp
	}
	p := decimal.NewFromFloat(price)
	adjusted := p.Div(tickSize).RoundBank(0).Mul(tickSize)
	return adjusted.StringFixed(decimals)
}

// CancelAllOrders 列出并撤销该合约全部活跃订单
// 单个撤单失败只记日志，继续撤剩余订单
func (s *TradingService) CancelAllOrders(ctx context.Context, instID string) error {
	ordIDs, err := s.ex.OpenOrders(ctx, instID)
	if err != nil {
		return errors.Wrapf(err, "%s 获取挂单列表失败", instID)
	}
	for _, ordID := range ordIDs {
		if err := s.ex.CancelOrder(ctx, instID, ordID); err != nil {
			tradingLog.Errorf("%s 撤单失败 ordId=%s: %v", instID, ordID, err)
		}
	}
	tradingLog.Infof("%s 挂单取消成功", instID)
	return nil
}

// setLeverage 设置杠杆；幂等，每轮调用无副作用
// 失败只记日志，不上抛——后续下单若因杠杆被拒，由下单路径处理
func (s *TradingService) setLeverage(ctx context.Context, instID, posSide string) {
	if err := s.ex.SetLeverage(ctx, instID, s.leverage, s.mgnMode, posSide); err != nil {
		tradingLog.Errorf("%s 设置杠杆失败: %v", instID, err)
		return
	}
	tradingLog.Infof("Leverage set to %dx for %s with mgnMode: %s", s.leverage, instID, s.mgnMode)
}

// PlaceOrder 按挂单意图挂一张限价单
//  1. 合约不在注册表 -> ErrUnknownInstrument，不发任何交易所请求
//  2. 价格按 tick 取整
//  3. USDT 名义额换算为合约张数，失败或结果无法解析则记日志+告警并放弃本单
//  4. 张数为 0（粉尘单）则跳过，不算错误
//  5. 设置杠杆后提交限价单；被拒只影响本单，不影响另一方向
func (s *TradingService) PlaceOrder(ctx context.Context, intent domain.OrderIntent) error {
	instID := intent.InstID
	inst, ok := s.registry.Lookup(instID)
	if !ok {
		tradingLog.Errorf("Instrument %s not found in registry", instID)
		return errors.Wrapf(domain.ErrUnknownInstrument, "%s", instID)
	}

	adjustedPrice := RoundPriceToTick(intent.TargetPrice, inst.TickSize)

	sz, err := s.ex.ConvertQuoteToContracts(ctx, instID, intent.NotionalUSDT, adjustedPrice)
	if err != nil {
		tradingLog.Errorf("%s 转换失败: %v", instID, err)
		if s.notifier != nil {
			s.notifier.Notify(fmt.Sprintf("%s 转换失败: %v", instID, err))
		}
		return err
	}

	szVal, parseErr := strconv.ParseFloat(sz, 64)
	if parseErr != nil {
		// 转换响应本身异常，和张数太小是两回事
		convErr := errors.Wrapf(domain.ErrConversionFailed, "%s 转换结果 sz=%q 无法解析", instID, sz)
		tradingLog.Errorf("%s 转换失败: %v", instID, convErr)
		if s.notifier != nil {
			s.notifier.Notify(fmt.Sprintf("%s 转换失败: %v", instID, convErr))
		}
		return convErr
	}
	if szVal <= 0 {
		// 粉尘单：跳过挂单，避免被交易所拒绝
		tradingLog.Infof("%s 计算出的合约张数太小，无法下单", instID)
		return nil
	}

	posSide := intent.Side.PosSide()
	s.setLeverage(ctx, instID, posSide)

	ordID, err := s.ex.PlaceLimitOrder(ctx, exchange.PlaceOrderRequest{
		InstID:  instID,
		TdMode:  s.mgnMode,
		PosSide: posSide,
		Side:    intent.Side,
		Size:    sz,
		Price:   adjustedPrice,
		ClOrdID: newClOrdID(),
	})
	if err != nil {
		tradingLog.Errorf("%s 下单失败: %v", instID, err)
		return err
	}

	tradingLog.Infof("Order placed: %s %s sz=%s px=%s ordId=%s", instID, intent.Side, sz, adjustedPrice, ordID)
	return nil
}

// ProcessInstrument 一个合约的完整处理周期
// 返回的 error 表示本轮整体失败（快照/撤单层面）；挂单层面的失败记录在 report.Errors 里，
// 不会中断另一方向的挂单
func (s *TradingService) ProcessInstrument(ctx context.Context, instID string, pc *config.PairConfig) (CycleReport, error) {
	report := CycleReport{InstID: instID, Time: time.Now()}

	markPrice, err := s.marketData.MarkPrice(ctx, instID)
	if err != nil {
		return report, errors.Wrapf(err, "%s 获取标记价格失败", instID)
	}
	report.MarkPrice = markPrice

	candles, err := s.marketData.Window(ctx, instID, pc.Bar, pc.CandleLimit, pc.MinCandles())
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			// 数据不足：跳过本轮，下一轮自然重试
			report.Skipped = "insufficient candles"
			return report, nil
		}
		return report, err
	}

	sig := trend.Evaluate(instID, pc, candles)
	report.Bullish = sig.Bullish
	report.Bearish = sig.Bearish

	offset := trend.Offset(pc, candles, markPrice)
	report.OffsetPct = offset

	longTarget, shortTarget := trend.Targets(markPrice, offset)
	report.LongTarget = longTarget
	report.ShortTarget = shortTarget
	tradingLog.Infof("%s Long target price: %.6f, Short target price: %.6f (offset %.4f%%)",
		instID, longTarget, shortTarget, offset)

	// 先全撤，再按本轮趋势重新挂单
	if err := s.CancelAllOrders(ctx, instID); err != nil {
		return report, err
	}

	if sig.Bullish {
		tradingLog.Infof("%s 当前为多头趋势，允许挂多单", instID)
		intent := domain.OrderIntent{
			InstID:       instID,
			Side:         domain.SideBuy,
			TargetPrice:  longTarget,
			NotionalUSDT: pc.LongAmountUSDT,
		}
		if err := s.PlaceOrder(ctx, intent); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	} else {
		tradingLog.Infof("%s 当前非多头趋势，跳过多单挂单", instID)
	}

	if sig.Bearish {
		tradingLog.Infof("%s 当前为空头趋势，允许挂空单", instID)
		intent := domain.OrderIntent{
			InstID:       instID,
			Side:         domain.SideSell,
			TargetPrice:  shortTarget,
			NotionalUSDT: pc.ShortAmountUSDT,
		}
		if err := s.PlaceOrder(ctx, intent); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	} else {
		tradingLog.Infof("%s 当前非空头趋势，跳过空单挂单", instID)
	}

	return report, nil
}

// newClOrdID 生成 OKX 合规的客户端订单 ID（字母数字，<=32 位）
func newClOrdID() string {
	id := "gs" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}
