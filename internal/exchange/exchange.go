package exchange

import (
	"context"

	"github.com/swapbot/goswap/internal/domain"
)

// PlaceOrderRequest 限价挂单请求
type PlaceOrderRequest struct {
	InstID  string
	TdMode  string // isolated / cross
	PosSide string // long / short
	Side    domain.Side
	Size    string // 合约张数（交易所字符串格式）
	Price   string // 已按 tick 取整并格式化
	ClOrdID string
}

// Exchange 交易所能力接口（与具体交易所无关，core 只依赖这里）
// 所有方法都是阻塞网络调用，必须带 context
type Exchange interface {
	// ListInstruments 列出指定类型的全部合约
	ListInstruments(ctx context.Context, instType string) ([]domain.Instrument, error)
	// LastPrice 返回最新成交价（标记挂单的锚点价格）
	LastPrice(ctx context.Context, instID string) (float64, error)
	// Candles 返回按时间升序（最旧在前）的 K 线
	Candles(ctx context.Context, instID, bar string, limit int) ([]domain.Candle, error)
	// OpenOrders 返回当前全部活跃订单的 ordId
	OpenOrders(ctx context.Context, instID string) ([]string, error)
	// CancelOrder 撤销单个订单
	CancelOrder(ctx context.Context, instID, ordID string) error
	// ConvertQuoteToContracts 把 USDT 名义额按给定价格换算为合约张数
	ConvertQuoteToContracts(ctx context.Context, instID string, quoteAmount float64, price string) (string, error)
	// SetLeverage 设置杠杆（幂等，可每轮调用）
	SetLeverage(ctx context.Context, instID string, lever int, mgnMode, posSide string) error
	// PlaceLimitOrder 提交限价单，返回 ordId
	PlaceLimitOrder(ctx context.Context, req PlaceOrderRequest) (string, error)
}
