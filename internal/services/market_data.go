package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/internal/exchange"
)

var marketLog = logrus.WithField("component", "market_data")

// MarketDataService 单个合约的行情快照：标记价 + 固定长度 K 线窗口
type MarketDataService struct {
	ex exchange.Exchange
}

// NewMarketDataService 创建行情服务
func NewMarketDataService(ex exchange.Exchange) *MarketDataService {
	return &MarketDataService{ex: ex}
}

// MarkPrice 返回挂单锚点价格；响应缺少价格字段时返回 ErrDataUnavailable
func (s *MarketDataService) MarkPrice(ctx context.Context, instID string) (float64, error) {
	return s.ex.LastPrice(ctx, instID)
}

// Window 返回按时间升序的 K 线窗口
// 返回数量少于 minCandles 时报 ErrDataUnavailable，调用方应跳过本轮，而不是当作致命错误
func (s *MarketDataService) Window(ctx context.Context, instID, bar string, limit, minCandles int) ([]domain.Candle, error) {
	candles, err := s.ex.Candles(ctx, instID, bar, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) < minCandles {
		marketLog.Warnf("%s K 线不足: 需要 %d，实际 %d", instID, minCandles, len(candles))
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "%s K 线不足: 需要 %d，实际 %d", instID, minCandles, len(candles))
	}
	return candles, nil
}
