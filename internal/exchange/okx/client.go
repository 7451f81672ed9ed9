package okx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/internal/exchange"
	"github.com/swapbot/goswap/pkg/ratelimit"
)

var log = logrus.WithField("component", "okx")

// Options OKX 客户端参数
type Options struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	Passphrase string
	Demo       bool // 模拟盘（x-simulated-trading: 1）
}

// Client OKX v5 REST 客户端，实现 exchange.Exchange
type Client struct {
	http       *resty.Client
	apiKey     string
	secretKey  string
	passphrase string
	demo       bool
	limits     *ratelimit.Manager
}

var _ exchange.Exchange = (*Client)(nil)

// NewClient 创建 OKX 客户端
// resty 会自动从环境变量读取代理配置（HTTP_PROXY / HTTPS_PROXY）
func NewClient(opt Options) *Client {
	base := strings.TrimSuffix(strings.TrimSpace(opt.BaseURL), "/")
	if base == "" {
		base = "https://www.okx.com"
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先使用 Retry-After 头
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 5 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{
		http:       hc,
		apiKey:     opt.APIKey,
		secretKey:  opt.SecretKey,
		passphrase: opt.Passphrase,
		demo:       opt.Demo,
		limits:     ratelimit.NewManager(),
	}
}

// do 发送一个已签名的请求并解析通用响应包
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, limitKey string) (*apiResponse, error) {
	if err := c.limits.Wait(ctx, limitKey); err != nil {
		return nil, err
	}

	requestPath := path
	if len(query) > 0 {
		requestPath = path + "?" + query.Encode()
	}

	bodyStr := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "序列化请求体失败")
		}
		bodyStr = string(raw)
	}

	ts := isoTimestamp(time.Now())

	var env apiResponse
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("OK-ACCESS-KEY", c.apiKey).
		SetHeader("OK-ACCESS-SIGN", sign(c.secretKey, ts, method, requestPath, bodyStr)).
		SetHeader("OK-ACCESS-TIMESTAMP", ts).
		SetHeader("OK-ACCESS-PASSPHRASE", c.passphrase).
		SetResult(&env)
	if c.demo {
		r.SetHeader("x-simulated-trading", "1")
	}
	if bodyStr != "" {
		r.SetBody(bodyStr)
	}

	var resp *resty.Response
	var err error
	switch method {
	case http.MethodGet:
		resp, err = r.Get(requestPath)
	case http.MethodPost:
		resp, err = r.Post(requestPath)
	default:
		return nil, errors.Errorf("不支持的方法: %s", method)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s 请求失败", method, path)
	}
	if resp.IsError() {
		return nil, errors.Errorf("%s %s HTTP %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	return &env, nil
}

// ListInstruments 列出指定类型的全部合约
func (c *Client) ListInstruments(ctx context.Context, instType string) ([]domain.Instrument, error) {
	q := url.Values{}
	q.Set("instType", instType)
	env, err := c.do(ctx, http.MethodGet, "/api/v5/public/instruments", q, nil, "public:instruments")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "instruments code=%s msg=%s", env.Code, env.Msg)
	}

	var items []instrumentItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "解析 instruments 失败")
	}
	if len(items) == 0 {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "instruments 为空")
	}

	out := make([]domain.Instrument, 0, len(items))
	for _, it := range items {
		tick, err := decimal.NewFromString(it.TickSz)
		if err != nil || tick.Sign() <= 0 {
			log.Warnf("跳过 tickSz 异常的合约: %s tickSz=%q", it.InstID, it.TickSz)
			continue
		}
		ctVal, err := decimal.NewFromString(it.CtVal)
		if err != nil {
			ctVal = decimal.Zero
		}
		out = append(out, domain.Instrument{
			InstID:   it.InstID,
			InstType: it.InstType,
			TickSize: tick,
			CtVal:    ctVal,
		})
	}
	if len(out) == 0 {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "没有可用的合约")
	}
	return out, nil
}

// LastPrice 返回最新成交价
func (c *Client) LastPrice(ctx context.Context, instID string) (float64, error) {
	q := url.Values{}
	q.Set("instId", instID)
	env, err := c.do(ctx, http.MethodGet, "/api/v5/market/ticker", q, nil, "market:ticker")
	if err != nil {
		return 0, err
	}
	if !env.ok() {
		return 0, errors.Wrapf(domain.ErrDataUnavailable, "ticker code=%s msg=%s", env.Code, env.Msg)
	}

	var items []tickerItem
	if err := json.Unmarshal(env.Data, &items); err != nil || len(items) == 0 || items[0].Last == "" {
		return 0, errors.Wrapf(domain.ErrDataUnavailable, "%s ticker 缺少 last 字段", instID)
	}
	last, err := strconv.ParseFloat(items[0].Last, 64)
	if err != nil {
		return 0, errors.Wrapf(domain.ErrDataUnavailable, "%s last=%q 解析失败", instID, items[0].Last)
	}
	return last, nil
}

// Candles 返回按时间升序（最旧在前）的 K 线
// OKX 返回最新在前，这里统一反转
func (c *Client) Candles(ctx context.Context, instID, bar string, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))
	env, err := c.do(ctx, http.MethodGet, "/api/v5/market/candles", q, nil, "market:candles")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "candles code=%s msg=%s", env.Code, env.Msg)
	}

	// 每项: [ts, o, h, l, c, vol, ...]
	var rows [][]string
	if err := json.Unmarshal(env.Data, &rows); err != nil || len(rows) == 0 {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "%s 无 K 线数据", instID)
	}

	out := make([]domain.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 5 {
			continue
		}
		ts, err0 := strconv.ParseInt(row[0], 10, 64)
		o, err1 := strconv.ParseFloat(row[1], 64)
		h, err2 := strconv.ParseFloat(row[2], 64)
		l, err3 := strconv.ParseFloat(row[3], 64)
		cl, err4 := strconv.ParseFloat(row[4], 64)
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		out = append(out, domain.Candle{Ts: ts, Open: o, High: h, Low: l, Close: cl})
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "%s K 线解析后为空", instID)
	}
	return out, nil
}

// OpenOrders 返回当前全部活跃订单的 ordId
func (c *Client) OpenOrders(ctx context.Context, instID string) ([]string, error) {
	q := url.Values{}
	q.Set("instId", instID)
	env, err := c.do(ctx, http.MethodGet, "/api/v5/trade/orders-pending", q, nil, "trade:orders-pending")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "orders-pending code=%s msg=%s", env.Code, env.Msg)
	}

	var items []pendingOrderItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, errors.Wrap(domain.ErrDataUnavailable, "解析 orders-pending 失败")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.OrdID != "" {
			ids = append(ids, it.OrdID)
		}
	}
	return ids, nil
}

// CancelOrder 撤销单个订单
func (c *Client) CancelOrder(ctx context.Context, instID, ordID string) error {
	body := map[string]string{"instId": instID, "ordId": ordID}
	env, err := c.do(ctx, http.MethodPost, "/api/v5/trade/cancel-order", nil, body, "trade:cancel")
	if err != nil {
		return err
	}
	if !env.ok() {
		return errors.Wrapf(domain.ErrOrderRejected, "撤单 %s/%s code=%s msg=%s", instID, ordID, env.Code, firstSMsg(env))
	}
	return nil
}

// ConvertQuoteToContracts 把 USDT 名义额按给定价格换算为合约张数
// type=1: 币转张；unit=usds: U 本位
func (c *Client) ConvertQuoteToContracts(ctx context.Context, instID string, quoteAmount float64, price string) (string, error) {
	q := url.Values{}
	q.Set("type", "1")
	q.Set("instId", instID)
	q.Set("sz", strconv.FormatFloat(quoteAmount, 'f', -1, 64))
	q.Set("px", price)
	q.Set("unit", "usds")
	env, err := c.do(ctx, http.MethodGet, "/api/v5/public/convert-contract-coin", q, nil, "public:convert")
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", errors.Wrapf(domain.ErrConversionFailed, "%s 转换失败 code=%s msg=%s", instID, env.Code, env.Msg)
	}

	var items []convertItem
	if err := json.Unmarshal(env.Data, &items); err != nil || len(items) == 0 || items[0].Sz == "" {
		return "", errors.Wrapf(domain.ErrConversionFailed, "%s 转换响应缺少 sz", instID)
	}
	return items[0].Sz, nil
}

// SetLeverage 设置杠杆（幂等，可每轮调用）
func (c *Client) SetLeverage(ctx context.Context, instID string, lever int, mgnMode, posSide string) error {
	body := map[string]string{
		"instId":  instID,
		"lever":   strconv.Itoa(lever),
		"mgnMode": mgnMode,
	}
	// 逐仓开平仓模式必须带持仓方向
	if mgnMode == "isolated" && posSide != "" {
		body["posSide"] = posSide
	}
	env, err := c.do(ctx, http.MethodPost, "/api/v5/account/set-leverage", nil, body, "account:leverage")
	if err != nil {
		return err
	}
	if !env.ok() {
		return errors.Wrapf(domain.ErrOrderRejected, "%s 设置杠杆失败 code=%s msg=%s", instID, env.Code, env.Msg)
	}
	return nil
}

// PlaceLimitOrder 提交限价单，返回 ordId
func (c *Client) PlaceLimitOrder(ctx context.Context, req exchange.PlaceOrderRequest) (string, error) {
	body := map[string]string{
		"instId":  req.InstID,
		"tdMode":  req.TdMode,
		"posSide": req.PosSide,
		"side":    string(req.Side),
		"ordType": "limit",
		"sz":      req.Size,
		"px":      req.Price,
	}
	if req.ClOrdID != "" {
		body["clOrdId"] = req.ClOrdID
	}
	env, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", nil, body, "trade:order")
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", errors.Wrapf(domain.ErrOrderRejected, "%s 下单失败 code=%s msg=%s", req.InstID, env.Code, firstSMsg(env))
	}

	var items []orderResultItem
	if err := json.Unmarshal(env.Data, &items); err != nil || len(items) == 0 {
		return "", errors.Wrapf(domain.ErrOrderRejected, "%s 下单响应异常", req.InstID)
	}
	if items[0].SCode != "" && items[0].SCode != "0" {
		return "", errors.Wrapf(domain.ErrOrderRejected, "%s 下单失败 sCode=%s sMsg=%s", req.InstID, items[0].SCode, items[0].SMsg)
	}
	return items[0].OrdID, nil
}

// firstSMsg 提取逐单结果里的错误信息（整包 msg 经常为空）
func firstSMsg(env *apiResponse) string {
	var items []orderResultItem
	if err := json.Unmarshal(env.Data, &items); err == nil && len(items) > 0 && items[0].SMsg != "" {
		return items[0].SMsg
	}
	return env.Msg
}
