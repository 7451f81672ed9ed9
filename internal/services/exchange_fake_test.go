package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/internal/exchange"
)

// fakeExchange 测试用交易所：可配置响应，记录全部调用
type fakeExchange struct {
	mu sync.Mutex

	instruments []domain.Instrument
	listErr     error

	lastPrice    float64
	lastPriceErr error
	priceDelay   time.Duration
	failPriceFor map[string]bool // 指定合约的行情请求失败
	panicFor     map[string]bool // 指定合约的行情请求 panic

	candles    []domain.Candle
	candlesErr error

	openOrders    []string
	openOrdersErr error
	cancelErr     error

	convertResult string
	convertErr    error

	leverageErr error
	placeErr    error

	// 调用记录
	ops           []string // 按时间顺序的操作名
	canceled      []string
	placed        []exchange.PlaceOrderRequest
	leverageCalls []string
	totalCalls    int

	inFlight    int
	maxInFlight int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		lastPrice:     100,
		convertResult: "1",
		failPriceFor:  make(map[string]bool),
		panicFor:      make(map[string]bool),
	}
}

func (f *fakeExchange) record(op string) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.totalCalls++
	f.mu.Unlock()
}

func (f *fakeExchange) ListInstruments(ctx context.Context, instType string) ([]domain.Instrument, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Instrument(nil), f.instruments...), nil
}

func (f *fakeExchange) LastPrice(ctx context.Context, instID string) (float64, error) {
	f.record("price")
	f.mu.Lock()
	if f.panicFor[instID] {
		f.mu.Unlock()
		panic("simulated exchange failure")
	}
	failed := f.failPriceFor[instID]
	delay := f.priceDelay
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	err := f.lastPriceErr
	price := f.lastPrice
	f.mu.Unlock()

	if failed {
		return 0, errors.Wrap(domain.ErrDataUnavailable, instID)
	}
	if err != nil {
		return 0, err
	}
	return price, nil
}

func (f *fakeExchange) Candles(ctx context.Context, instID, bar string, limit int) ([]domain.Candle, error) {
	f.record("candles")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	return append([]domain.Candle(nil), f.candles...), nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, instID string) ([]string, error) {
	f.record("open_orders")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openOrdersErr != nil {
		return nil, f.openOrdersErr
	}
	return append([]string(nil), f.openOrders...), nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, instID, ordID string) error {
	f.record("cancel")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, ordID)
	return nil
}

func (f *fakeExchange) ConvertQuoteToContracts(ctx context.Context, instID string, quoteAmount float64, price string) (string, error) {
	f.record("convert")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convertErr != nil {
		return "", f.convertErr
	}
	return f.convertResult, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, instID string, lever int, mgnMode, posSide string) error {
	f.record("leverage")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverageCalls = append(f.leverageCalls, instID+"/"+posSide)
	return f.leverageErr
}

func (f *fakeExchange) PlaceLimitOrder(ctx context.Context, req exchange.PlaceOrderRequest) (string, error) {
	f.record("place")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, req)
	return "ord-" + req.ClOrdID, nil
}

func (f *fakeExchange) placedOrders() []exchange.PlaceOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.PlaceOrderRequest(nil), f.placed...)
}

func (f *fakeExchange) canceledOrders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

func (f *fakeExchange) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeExchange) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCalls
}

// fakeNotifier 记录全部告警消息
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
